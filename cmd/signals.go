/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"

	serial "github.com/allbin/uart-test"
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
)

func newSignalsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signals <tty>",
		Short: "Display current modem signal states",
		Long: `Display the state of every modem control line on a device.

Useful before rts_control: with a null-modem cable, RTS on one end should
read back as CTS on the other.

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  DCD - Data Carrier Detect (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)`,
		Args: ttyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			tty := args[0]

			port, err := a.openDevice(tty, harness.Descriptor{Name: "signals"}, harness.Initiator)
			if err != nil {
				printOpenFailure(cmd.ErrOrStderr(), tty, err)
				return reported(err)
			}
			defer port.Close()

			signals, err := port.GetModemSignals()
			if err != nil {
				return fmt.Errorf("error reading modem signals: %w", err)
			}
			printSignals(cmd.OutOrStdout(), tty, signals)
			return nil
		},
	}
}

func printSignals(w io.Writer, tty string, signals serial.ModemSignals) {
	fmt.Fprintf(w, "%s\n\n", infoStyle.Render("Modem Signals for "+tty+":"))
	fmt.Fprintf(w, "  CTS (Clear To Send):       %s\n", formatSignalState(signals.CTS))
	fmt.Fprintf(w, "  DSR (Data Set Ready):      %s\n", formatSignalState(signals.DSR))
	fmt.Fprintf(w, "  RI  (Ring Indicator):      %s\n", formatSignalState(signals.RI))
	fmt.Fprintf(w, "  DCD (Data Carrier Detect): %s\n", formatSignalState(signals.DCD))
	fmt.Fprintf(w, "  RTS (Request To Send):     %s\n", formatSignalState(signals.RTS))
	fmt.Fprintf(w, "  DTR (Data Terminal Ready): %s\n", formatSignalState(signals.DTR))
}

func formatSignalState(state bool) string {
	if state {
		return successStyle.Render("HIGH")
	}
	return mutedStyle.Render("LOW")
}
