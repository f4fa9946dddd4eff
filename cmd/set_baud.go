/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newSetBaudCmd(a *app) *cobra.Command {
	var (
		receiver, sender bool
		baudRate         int
	)

	setBaudCmd := &cobra.Command{
		Use:   "set_baud [flags] <tty>",
		Short: "Set baudrate",
		Long: `Switch the open device to a new line rate and exchange a sentence at it.

Both ends must be given the same rate. Rates outside the standard table are
programmed as custom divisors when the driver supports it.

Examples:
  uart-test set_baud -r -b 230400 /dev/ttyS1
  uart-test set_baud -s -b 230400 /dev/ttyS0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := roleFromFlags(receiver, sender)
			if err != nil {
				return err
			}

			opts := harness.Options{Role: role, BaudRate: a.cfg.Tests.SetBaudRate}
			if cmd.Flags().Changed("baudrate") {
				opts.BaudRate = baudRate
			}
			return a.runProtocol(cmd, "set_baud", args[0], opts)
		},
	}

	addRoleFlags(setBaudCmd, &receiver, &sender)
	setBaudCmd.Flags().IntVarP(&baudRate, "baudrate", "b", harness.DefaultBaudRate, "rate to switch to")
	return setBaudCmd
}
