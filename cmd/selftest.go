/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/allbin/uart-test/internal/harness"
	"github.com/allbin/uart-test/internal/loopback"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// selftestSide is one end of a self-test run
type selftestSide struct {
	desc   harness.Descriptor
	opts   harness.Options
	stream harness.Stream
	closer io.Closer
	device string

	report harness.Report
	err    error
}

// protocolFlags are the per-protocol knobs a self-test forwards to both ends
type protocolFlags struct {
	count    int
	command  string
	timeout  time.Duration
	baudRate int
	duration time.Duration
}

func newSelftestCmd(a *app) *cobra.Command {
	var (
		devices []string
		pf      protocolFlags
	)

	selftestCmd := &cobra.Command{
		Use:   "selftest <protocol> [flags]",
		Short: "Run both ends of a protocol from one process",
		Long: `Run the initiator and the responder of a protocol at the same time.

Without --devices both ends share an in-memory link with RTS/CTS wiring,
which checks the tool itself. With --devices the two ends are opened on two
real ports that should be wired to each other, e.g. with a null-modem cable.

sendbreak and waitbreak are each other's peer; every other protocol runs
against itself.

Examples:
  uart-test selftest ping -n 65536 -c SEND_RECV
  uart-test selftest rts_control -t 2s
  uart-test selftest iovec --devices /dev/ttyUSB0,/dev/ttyUSB1`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: selftest needs exactly one protocol name", harness.ErrConfig)
			}
			return nil
		},
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			var names []string
			for _, d := range a.reg.Descriptors() {
				names = append(names, d.Name+"\t"+d.Description)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			initiator, ok := a.reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w %q", harness.ErrUnknownProtocol, args[0])
			}
			responder, _ := a.reg.PeerOf(initiator.Name)

			sides := [2]*selftestSide{
				{desc: initiator},
				{desc: responder},
			}
			for i, role := range []harness.Role{harness.Initiator, harness.Responder} {
				opts, err := a.selftestOptions(cmd, pf, sides[i].desc.Name, role)
				if err != nil {
					return err
				}
				sides[i].opts = opts
			}

			if err := a.attachSides(cmd, sides, devices); err != nil {
				return err
			}

			err := runSelftest(sides)
			fmt.Fprintln(cmd.OutOrStdout(), renderSelftest(sides))
			return reported(err)
		},
	}

	flags := selftestCmd.Flags()
	flags.StringSliceVar(&devices, "devices", nil, "two wired devices to use instead of the in-memory link")
	flags.IntVarP(&pf.count, "count", "n", harness.DefaultPingCount, "ping payload size in bytes")
	flags.StringVarP(&pf.command, "command", "c", "SEND", "ping request mode: SEND or SEND_RECV")
	flags.DurationVarP(&pf.timeout, "timeout", "t", 0, "rts_control window or waitbreak deadline (default from config)")
	flags.IntVarP(&pf.baudRate, "baudrate", "b", harness.DefaultBaudRate, "set_baud target rate")
	flags.DurationVarP(&pf.duration, "duration", "d", 0, "sendbreak length, 0 for the driver default")
	return selftestCmd
}

// selftestOptions resolves flags against the config for one end
func (a *app) selftestOptions(cmd *cobra.Command, pf protocolFlags, name string, role harness.Role) (harness.Options, error) {
	changed := cmd.Flags().Changed
	tests := a.cfg.Tests

	opts := harness.Options{
		Role:     role,
		Count:    tests.PingCount,
		BaudRate: tests.SetBaudRate,
		Duration: tests.BreakDuration,
		Logger:   a.log.With(zap.Stringer("side", role)),
	}
	if changed("count") {
		opts.Count = pf.count
	}
	if changed("baudrate") {
		opts.BaudRate = pf.baudRate
	}
	if changed("duration") {
		opts.Duration = pf.duration
	}

	switch name {
	case "rts_control":
		opts.Timeout = tests.RTSTimeout
	case "waitbreak":
		opts.Timeout = tests.WaitBreakTimeout
	}
	if changed("timeout") {
		opts.Timeout = pf.timeout
	}

	if role == harness.Initiator {
		mode, err := harness.ParseCommand(pf.command)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	return opts, nil
}

// attachSides gives each end its stream: both ends of a fresh loopback link,
// or the two listed devices
func (a *app) attachSides(cmd *cobra.Command, sides [2]*selftestSide, devices []string) error {
	switch len(devices) {
	case 0:
		ea, eb := loopback.Pipe(loopback.WithBaudRate(a.cfg.Serial.BaudRate))
		for i, end := range []*loopback.End{ea, eb} {
			sides[i].stream = end
			sides[i].closer = end
			sides[i].device = end.Path()
		}
		return nil
	case 2:
	default:
		return fmt.Errorf("%w: --devices takes two devices, got %d", harness.ErrConfig, len(devices))
	}

	for i, path := range devices {
		port, err := a.openDevice(path, sides[i].desc, sides[i].opts.Role)
		if err != nil {
			printOpenFailure(cmd.ErrOrStderr(), path, err)
			if i == 1 {
				sides[0].closer.Close()
			}
			return reported(err)
		}
		sides[i].stream = port
		sides[i].closer = port
		sides[i].device = path
	}
	return nil
}

// runSelftest runs both ends concurrently. Each end closes its stream when it
// finishes so a peer stuck on a read sees the link go down.
func runSelftest(sides [2]*selftestSide) error {
	var wg conc.WaitGroup
	for _, s := range sides {
		s := s
		wg.Go(func() {
			s.report, s.err = s.desc.Execute(s.stream, s.opts)
			s.closer.Close()
		})
	}
	wg.Wait()

	return multierr.Combine(sides[0].err, sides[1].err)
}

func renderSelftest(sides [2]*selftestSide) string {
	columns := []table.Column{
		{Title: "Role", Width: 10},
		{Title: "Protocol", Width: 12},
		{Title: "Device", Width: 14},
		{Title: "Result", Width: 20},
		{Title: "Bytes", Width: 9},
		{Title: "Elapsed", Width: 12},
		{Title: "Throughput", Width: 13},
	}

	rows := make([]table.Row, 0, len(sides))
	var details []string
	for _, s := range sides {
		rows = append(rows, table.Row{
			s.report.Role.String(),
			s.report.Protocol,
			s.device,
			harness.OutcomeOf(s.err).String(),
			fmt.Sprintf("%d", s.report.Bytes),
			s.report.Elapsed.Round(time.Microsecond).String(),
			formatThroughput(s.report.Bytes, s.report.Elapsed),
		})

		switch {
		case s.err != nil:
			details = append(details, errorStyle.Render("✗")+" "+s.report.Role.String()+": "+s.err.Error())
		case s.report.Detail != "":
			details = append(details, successStyle.Render("✓")+" "+s.report.Role.String()+": "+s.report.Detail)
		}
	}

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("99"))
	s.Selected = lipgloss.NewStyle()

	// Height covers the bordered header plus every row
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithStyles(s),
		table.WithHeight(len(rows)+2),
	)

	return lipgloss.JoinVertical(lipgloss.Left, append([]string{t.View()}, details...)...)
}
