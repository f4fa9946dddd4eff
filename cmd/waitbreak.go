/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"time"

	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newWaitBreakCmd(a *app) *cobra.Command {
	var timeout time.Duration

	waitBreakCmd := &cobra.Command{
		Use:   "waitbreak [flags] <tty>",
		Short: "waits for BREAK condition on the specified port",
		Long: `Open the device with break marking and wait for a BREAK.

Ordinary data received before the break is counted and reported. Fails with
a timeout when no break arrives in time.

Examples:
  uart-test waitbreak /dev/ttyS1
  uart-test waitbreak -t 30s /dev/ttyS1`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := harness.Options{Role: harness.Responder, Timeout: a.cfg.Tests.WaitBreakTimeout}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = timeout
			}
			return a.runProtocol(cmd, "waitbreak", args[0], opts)
		},
	}

	waitBreakCmd.Flags().DurationVarP(&timeout, "timeout", "t", harness.DefaultWaitBreakTimeout, "how long to wait for the break")
	return waitBreakCmd
}
