/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	serial "github.com/allbin/uart-test"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		filterType  string
		tableFormat bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Long: `List the serial ports a test can be pointed at.

USB serial adapters (ttyUSB*), CDC/ACM devices (ttyACM*), standard UARTs
(ttyS*) and the usual SoC UARTs are listed; virtual terminals and
pseudo-terminals are not. With --table, USB adapters also show their vendor
and product IDs and serial number so the two ends of a rig can be told apart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serial.ListPorts()
			if err != nil {
				return fmt.Errorf("error listing ports: %w", err)
			}

			ports = filterPorts(ports, filterType)
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				if filterType != "" && filterType != "all" {
					fmt.Fprintf(out, "No serial ports found matching filter: %s\n", filterType)
				} else {
					fmt.Fprintln(out, "No serial ports found")
				}
				return nil
			}

			if tableFormat {
				renderPortTable(out, ports)
			} else {
				for _, port := range ports {
					fmt.Fprintln(out, port)
				}
			}
			return nil
		},
	}

	listCmd.Flags().StringVarP(&filterType, "filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolVarP(&tableFormat, "table", "t", false, "Display output in a styled table format")
	return listCmd
}

var portFilters = map[string][]string{
	"usb":      {"ttyusb", "ttyacm"},
	"standard": {"ttys"},
	"arm":      {"ttyama"},
}

// filterPorts keeps the ports whose device name matches filterType
func filterPorts(ports []string, filterType string) []string {
	prefixes, ok := portFilters[strings.ToLower(filterType)]
	if !ok {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		name := strings.ToLower(port[strings.LastIndex(port, "/")+1:])
		for _, prefix := range prefixes {
			// ttys must not pick up ttySAC and friends
			if strings.HasPrefix(name, prefix) && (prefix != "ttys" || isDigits(name[len(prefix):])) {
				filtered = append(filtered, port)
				break
			}
		}
	}
	return filtered
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func renderPortTable(w io.Writer, ports []string) {
	columns := []table.Column{
		{Title: "Port", Width: 16},
		{Title: "Description", Width: 22},
		{Title: "VID:PID", Width: 10},
		{Title: "Serial", Width: 16},
		{Title: "Product", Width: 24},
	}

	rows := make([]table.Row, 0, len(ports))
	for _, port := range ports {
		info, err := serial.GetPortInfo(port)
		if err != nil {
			rows = append(rows, table.Row{port, fmt.Sprintf("Error: %v", err), "", "", ""})
			continue
		}

		ids := ""
		if info.VendorID != "" {
			ids = info.VendorID + ":" + info.ProductID
		}
		rows = append(rows, table.Row{info.Path, info.Description, ids, info.SerialNumber, info.Product})
	}

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("99"))
	s.Selected = lipgloss.NewStyle()

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithStyles(s),
		table.WithHeight(len(rows)+2),
	)

	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(ports))
	fmt.Fprintln(w, t.View())
}
