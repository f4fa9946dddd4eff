/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	serial "github.com/allbin/uart-test"
	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openDevice opens path with the configured line settings plus whatever the
// protocol needs from the driver on this end
func (a *app) openDevice(path string, d harness.Descriptor, role harness.Role) (serial.Port, error) {
	opts, err := a.cfg.Serial.Options()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", harness.ErrConfig, err)
	}
	opts = append(opts, d.PortOptionsFor(role)...)

	port, err := serial.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	a.log.Debug("device opened",
		zap.String("device", path),
		zap.String("protocol", d.Name),
		zap.Stringer("role", role),
		zap.Int("baud_rate", a.cfg.Serial.BaudRate))
	return port, nil
}

// runProtocol opens tty, executes the named protocol on it and prints the
// result. The returned error carries the outcome for the exit status.
func (a *app) runProtocol(cmd *cobra.Command, name, tty string, opts harness.Options) error {
	d, ok := a.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w %q", harness.ErrUnknownProtocol, name)
	}

	port, err := a.openDevice(tty, d, opts.Role)
	if err != nil {
		printOpenFailure(cmd.ErrOrStderr(), tty, err)
		return reported(err)
	}
	defer port.Close()

	opts.Logger = a.log
	report, err := d.Execute(port, opts)
	printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), tty, report, err)
	return reported(err)
}

// roleFromFlags resolves the -r/--receiver and -s/--sender pair. The sender
// side is the default.
func roleFromFlags(receiver, sender bool) (harness.Role, error) {
	switch {
	case receiver && sender:
		return 0, fmt.Errorf("%w: --receiver and --sender are mutually exclusive", harness.ErrConfig)
	case receiver:
		return harness.Responder, nil
	default:
		return harness.Initiator, nil
	}
}

func addRoleFlags(cmd *cobra.Command, receiver, sender *bool) {
	cmd.Flags().BoolVarP(receiver, "receiver", "r", false, "run the receiving (responder) side")
	cmd.Flags().BoolVarP(sender, "sender", "s", false, "run the sending (initiator) side, the default")
}
