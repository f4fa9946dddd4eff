/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/allbin/uart-test"
	"github.com/allbin/uart-test/internal/harness"
	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// printReport writes a one-line verdict for a finished run, followed by
// transfer timings when the protocol measured any
func printReport(out, errOut io.Writer, tty string, r harness.Report, err error) {
	title := fmt.Sprintf("%s (%s) on %s", r.Protocol, r.Role, tty)

	if err != nil {
		outcome := harness.OutcomeOf(err)
		fmt.Fprintf(errOut, "%s %s: %s\n", errorStyle.Render("✗"), title, errorStyle.Render(outcome.String()))
		fmt.Fprintf(errOut, "  %s\n", err)
		if outcome == harness.Mismatch {
			fmt.Fprintf(errOut, "  %s\n", mutedStyle.Render("the peer sent data this side did not expect; check that both ends run the same protocol and line settings"))
		}
		if r.Detail != "" {
			fmt.Fprintf(errOut, "  %s\n", mutedStyle.Render(r.Detail))
		}
		return
	}

	fmt.Fprintf(out, "%s %s\n", successStyle.Render("✓"), infoStyle.Render(title))
	if r.Detail != "" {
		fmt.Fprintf(out, "  %s\n", r.Detail)
	}
	for _, t := range r.Transfers {
		fmt.Fprintf(out, "  %s %-7s %s\n", infoStyle.Render("⚡"), t.Direction, formatTransfer(t.Bytes, t.Elapsed))
	}
	if len(r.Transfers) == 0 && r.Bytes > 0 && r.Elapsed > 0 {
		fmt.Fprintf(out, "  %s %s\n", infoStyle.Render("⚡"), formatTransfer(r.Bytes, r.Elapsed))
	}
}

// printOpenFailure explains why a device could not be opened
func printOpenFailure(w io.Writer, tty string, err error) {
	fmt.Fprintf(w, "%s cannot open %s\n", errorStyle.Render("✗"), tty)
	fmt.Fprintf(w, "  %s\n", err)

	var hint string
	switch {
	case errors.Is(err, serial.ErrDeviceNotFound):
		hint = "no such device; run 'uart-test list' to see available ports"
	case errors.Is(err, serial.ErrPermissionDenied):
		hint = "permission denied; add your user to the dialout group or run as root"
	case errors.Is(err, serial.ErrDeviceInUse):
		hint = "the device is held by another process"
	}
	if hint != "" {
		fmt.Fprintf(w, "  %s\n", mutedStyle.Render(hint))
	}
}

func formatTransfer(bytes int, elapsed time.Duration) string {
	return fmt.Sprintf("%d bytes in %s (%s)", bytes, elapsed.Round(time.Microsecond), formatThroughput(bytes, elapsed))
}

func formatThroughput(bytes int, elapsed time.Duration) string {
	rate := harness.Report{Bytes: bytes, Elapsed: elapsed}.Throughput()
	switch {
	case rate == 0:
		return "-"
	case rate >= 1<<20:
		return fmt.Sprintf("%.2f MiB/s", rate/(1<<20))
	case rate >= 1<<10:
		return fmt.Sprintf("%.2f KiB/s", rate/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", rate)
	}
}

// reportedError marks an error whose diagnostic was already printed
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// Reported tells whether a command already printed a diagnostic for err
func Reported(err error) bool {
	var re reportedError
	return errors.As(err, &re)
}
