/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newIOVecCmd(a *app) *cobra.Command {
	var receiver, sender bool

	iovecCmd := &cobra.Command{
		Use:   "iovec [flags] <tty>",
		Short: "iovec test over a serial line",
		Long: `Send a fixed sentence as five segments in one vectored write and check the
receiver gets it back in one vectored read, segment by segment.

Examples:
  uart-test iovec -r /dev/ttyS1
  uart-test iovec -s /dev/ttyS0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := roleFromFlags(receiver, sender)
			if err != nil {
				return err
			}
			return a.runProtocol(cmd, "iovec", args[0], harness.Options{Role: role})
		},
	}

	addRoleFlags(iovecCmd, &receiver, &sender)
	return iovecCmd
}
