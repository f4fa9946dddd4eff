// Package serial provides raw access to Linux serial ports for link testing.
//
// A Port wraps a tty file descriptor in raw mode and exposes the primitives a
// UART test needs: plain and vectored I/O, a poll-based wait with a typed
// result, modem line control, BREAK transmission and on-the-fly baud changes
// including non-standard rates.
//
// # Basic Usage
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//
//	readiness, err := port.WaitReadable(2 * time.Second)
//	if readiness == serial.Ready {
//	    buf := make([]byte, 256)
//	    n, err = port.Read(buf)
//	}
//
// # Configuration Options
//
// Open takes functional options. The defaults are 115200 8N1, no flow
// control, blocking reads and an input flush right after open.
//
//	port, err := serial.Open("/dev/ttyS1",
//	    serial.WithBaudRate(250000),
//	    serial.WithFlowControl(serial.FlowControlRTSCTS),
//	    serial.WithReadTimeout(500*time.Millisecond),
//	    serial.WithInitialRTS(true),
//	    serial.WithBreakMarking(),
//	)
//
// Rates missing from the termios table are programmed through BOTHER.
// With break marking enabled a received BREAK shows up in the input stream as
// the bytes FF 00 00.
//
// # Port Discovery
//
//	ports, err := serial.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := serial.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID)
//	}
//
// # Error Handling
//
// Open wraps errno values with the package sentinels so callers can test
// with errors.Is:
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if errors.Is(err, serial.ErrDeviceNotFound) {
//	    // device doesn't exist
//	} else if errors.Is(err, serial.ErrPermissionDenied) {
//	    // add user to dialout group
//	}
package serial
