/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"time"

	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newRTSControlCmd(a *app) *cobra.Command {
	var (
		receiver, sender bool
		timeout          time.Duration
	)

	rtsControlCmd := &cobra.Command{
		Use:   "rts_control [flags] <tty>",
		Short: "Test RTS control",
		Long: `Check that dropping RTS on the receiver holds off the sender.

The sender transmits CMD1 and waits for OKAY. The receiver deasserts RTS on
CMD1, verifies nothing arrives for the timeout window, reasserts RTS and
answers OKAY once the held-back CMD2 arrives. Run the receiver first.

The sender opens the device with RTS/CTS hardware flow control (CRTSCTS) so
the driver stops transmitting while CTS is low. The receiver leaves CRTSCTS
off and toggles RTS itself.

Examples:
  uart-test rts_control -r /dev/ttyUSB1
  uart-test rts_control -s -t 5s /dev/ttyUSB0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := roleFromFlags(receiver, sender)
			if err != nil {
				return err
			}

			opts := harness.Options{Role: role, Timeout: a.cfg.Tests.RTSTimeout}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = timeout
			}
			return a.runProtocol(cmd, "rts_control", args[0], opts)
		},
	}

	addRoleFlags(rtsControlCmd, &receiver, &sender)
	rtsControlCmd.Flags().DurationVarP(&timeout, "timeout", "t", harness.DefaultRTSTimeout, "length of each handshake window")
	return rtsControlCmd
}
