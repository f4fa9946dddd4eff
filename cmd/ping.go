/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newPingCmd(a *app) *cobra.Command {
	var (
		server  bool
		count   int
		command string
	)

	pingCmd := &cobra.Command{
		Use:   "ping [flags] <tty>",
		Short: "Measure payload throughput against a peer",
		Long: `Transfer a payload of 'a' bytes to a peer and time it.

The client sends a request frame naming the mode and byte count; the server
acknowledges and receives the payload. With SEND_RECV the server also sends
the same payload back while the client receives it.

Examples:
  uart-test ping -s /dev/ttyS1
  uart-test ping -n 65536 /dev/ttyS0
  uart-test ping -n 4096 -c SEND_RECV /dev/ttyS0`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := harness.Options{Role: harness.Initiator}
			if server {
				opts.Role = harness.Responder
			}

			opts.Count = a.cfg.Tests.PingCount
			if cmd.Flags().Changed("count") {
				opts.Count = count
			}
			mode, err := harness.ParseCommand(command)
			if err != nil {
				return err
			}
			opts.Mode = mode

			return a.runProtocol(cmd, "ping", args[0], opts)
		},
	}

	pingCmd.Flags().BoolVarP(&server, "server", "s", false, "answer requests instead of sending one")
	pingCmd.Flags().IntVarP(&count, "count", "n", harness.DefaultPingCount, "payload size in bytes")
	pingCmd.Flags().StringVarP(&command, "command", "c", "SEND", "request mode: SEND or SEND_RECV")
	return pingCmd
}
