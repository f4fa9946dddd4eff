/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"time"

	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newSendBreakCmd(a *app) *cobra.Command {
	var duration time.Duration

	sendBreakCmd := &cobra.Command{
		Use:   "sendbreak [flags] <tty>",
		Short: "send BREAK to the specified port",
		Long: `Hold the line in the spacing state for the given duration.

A zero duration lets the driver pick its default, typically 250-500ms.
Pair with 'uart-test waitbreak' on the other end.

Examples:
  uart-test sendbreak /dev/ttyS0
  uart-test sendbreak -d 100ms /dev/ttyS0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := harness.Options{Role: harness.Initiator, Duration: a.cfg.Tests.BreakDuration}
			if cmd.Flags().Changed("duration") {
				opts.Duration = duration
			}
			return a.runProtocol(cmd, "sendbreak", args[0], opts)
		},
	}

	sendBreakCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "break length, 0 for the driver default")
	return sendBreakCmd
}
