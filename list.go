package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// serialDeviceName matches communication-capable UART nodes under /dev.
// Virtual terminals (tty1), the console and ptys never match.
var serialDeviceName = regexp.MustCompile(`^(ttyUSB|ttyACM|ttyS|ttyAMA|ttymxc|ttyO|ttySAC|ttyTHS)\d+$`)

// portKinds maps device name prefixes to descriptions, longest prefix first
var portKinds = []struct {
	prefix      string
	description string
}{
	{"ttyUSB", "USB Serial Port"},
	{"ttyACM", "USB CDC/ACM Device"},
	{"ttyAMA", "ARM Serial Port"},
	{"ttymxc", "i.MX Serial Port"},
	{"ttySAC", "Samsung Serial Port"},
	{"ttyTHS", "Tegra Serial Port"},
	{"ttyO", "OMAP Serial Port"},
	{"ttyS", "Standard Serial Port"},
}

// PortInfo describes a serial device node
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}

// ListPorts returns the serial ports present under /dev, sorted by path
func ListPorts() ([]string, error) {
	return listPortsIn("/dev")
}

func listPortsIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if !serialDeviceName.MatchString(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isCharacterDevice(path) {
			ports = append(ports, path)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// GetPortInfo returns detailed information about a specific port.
// USB metadata is filled in when the enumerator knows the device.
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		// Missing sysfs metadata leaves the USB fields empty
		_ = enrichUSBInfo(info)
	}

	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	for _, kind := range portKinds {
		if strings.HasPrefix(name, kind.prefix) {
			return kind.description
		}
	}
	return "Serial Port"
}

// enrichUSBInfo copies VID/PID/serial from the sysfs-backed enumerator
func enrichUSBInfo(info *PortInfo) error {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return err
	}
	return applyUSBDetails(info, details)
}

func applyUSBDetails(info *PortInfo, details []*enumerator.PortDetails) error {
	for _, d := range details {
		if d == nil || !d.IsUSB {
			continue
		}
		if d.Name != info.Path && filepath.Base(d.Name) != info.Name {
			continue
		}
		info.IsUSB = true
		info.VendorID = d.VID
		info.ProductID = d.PID
		info.SerialNumber = d.SerialNumber
		info.Product = d.Product
		return nil
	}
	return ErrUSBInfoNotAvailable
}
