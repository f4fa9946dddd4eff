/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newAlignmentCmd(a *app) *cobra.Command {
	var receiver, sender bool

	alignmentCmd := &cobra.Command{
		Use:   "alignment [flags] <tty>",
		Short: "alignment test over a serial line",
		Long: `Write from and read into buffers that start off a word boundary.

Examples:
  uart-test alignment -r /dev/ttyS1
  uart-test alignment -s /dev/ttyS0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := roleFromFlags(receiver, sender)
			if err != nil {
				return err
			}
			return a.runProtocol(cmd, "alignment", args[0], harness.Options{Role: role})
		},
	}

	addRoleFlags(alignmentCmd, &receiver, &sender)
	return alignmentCmd
}
