package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Port represents a serial port connection interface
type Port interface {
	Path() string
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)

	// Vectored I/O, one readv(2)/writev(2) call each
	Readv(bufs [][]byte) (int, error)
	Writev(bufs [][]byte) (int, error)

	// WaitReadable blocks until input is pending or timeout elapses
	WaitReadable(timeout time.Duration) (Readiness, error)

	Drain() error
	FlushInput() error
	FlushOutput() error
	SendBreak(duration time.Duration) error
	SetBaudRate(rate int) error

	// Modem signal control and monitoring
	GetModemSignals() (ModemSignals, error)
	SetRTS(state bool) error
	GetRTS() (bool, error)
	SetDTR(state bool) error
	GetDTR() (bool, error)
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	path   string
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// Readiness is the result of waiting for input
type Readiness int

const (
	Ready Readiness = iota
	TimedOut
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Readiness(%d)", int(r))
	}
}

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// getModemStatus retrieves modem control signals using unix package
func getModemStatus(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

// setModemLine raises or drops one TIOCM line
func setModemLine(fd int, line int, state bool) error {
	if state {
		return unix.IoctlSetInt(fd, unix.TIOCMBIS, line)
	}
	return unix.IoctlSetInt(fd, unix.TIOCMBIC, line)
}

// modemSignalsFromStatus decodes a TIOCMGET bit set
func modemSignalsFromStatus(status int) ModemSignals {
	return ModemSignals{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}
}

// breakDeciseconds converts a break duration to the TCSBRKP argument
func breakDeciseconds(d time.Duration) int {
	return int((d + 99*time.Millisecond) / (100 * time.Millisecond))
}

// pollMillis converts a remaining wait to the poll(2) timeout argument
func pollMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Millisecond)
}

// openError maps open(2) failures to the package sentinels, keeping the errno
func openError(device string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, device, err)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, device, err)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %s: %w", ErrDeviceInUse, device, err)
	default:
		return fmt.Errorf("failed to open %s: %w", device, err)
	}
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (Port, error) {
	// Apply default configuration
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	flags := unix.O_RDWR | unix.O_NOCTTY | unix.O_CLOEXEC
	if config.WriteMode == WriteModeSynced {
		flags |= unix.O_SYNC
	}

	fd, err := unix.Open(device, flags, 0)
	if err != nil {
		return nil, openError(device, err)
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Apply initial signal states if configured
	if config.InitialRTS != nil {
		if err := setModemLine(fd, unix.TIOCM_RTS, *config.InitialRTS); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if config.InitialDTR != nil {
		if err := setModemLine(fd, unix.TIOCM_DTR, *config.InitialDTR); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}

	if config.FlushOnOpen {
		if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to flush input: %w", err)
		}
	}

	return &port{
		fd:     fd,
		path:   device,
		config: config,
	}, nil
}

// configurePort puts the line in raw mode and applies the framing settings
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	// Raw mode, receiver enabled, modem control lines ignored
	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	if config.ReadTimeout == 0 {
		termios.Cc[unix.VMIN] = 1
		termios.Cc[unix.VTIME] = 0
	} else {
		termios.Cc[unix.VMIN] = 0
		termios.Cc[unix.VTIME] = uint8(config.ReadTimeout / (100 * time.Millisecond))
	}

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	if config.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}

	// IGNBRK and BRKINT stay clear so a marked break reaches the reader
	if config.BreakMarking {
		termios.Iflag |= unix.PARMRK
	}

	standard, baudErr := getBaudRate(config.BaudRate)
	if baudErr == nil {
		termios.Cflag |= standard
		termios.Ispeed = standard
		termios.Ospeed = standard
	} else {
		termios.Cflag |= unix.B38400
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}

	if baudErr != nil {
		return setCustomBaudRate(fd, config.BaudRate)
	}

	return nil
}

// setBaudRate changes only the line speed, keeping every other termios flag
func setBaudRate(fd int, rate int) error {
	standard, err := getBaudRate(rate)
	if err != nil {
		return setCustomBaudRate(fd, rate)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | standard
	termios.Ispeed = standard
	termios.Ospeed = standard

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", rate, err)
	}
	return nil
}

// setCustomBaudRate programs an arbitrary rate through termios2/BOTHER
func setCustomBaudRate(fd int, rate int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("failed to get termios2: %w", err)
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | unix.BOTHER
	termios.Ispeed = uint32(rate)
	termios.Ospeed = uint32(rate)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, termios); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", rate, err)
	}
	return nil
}

// Path returns the device path the port was opened from
func (p *port) Path() string {
	return p.path
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// Read reads data from the serial port
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Read(p.fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write writes data to the serial port
func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Write(p.fd, data)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Readv scatters one read across bufs
func (p *port) Readv(bufs [][]byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	return unix.Readv(p.fd, bufs)
}

// Writev gathers bufs into one write
func (p *port) Writev(bufs [][]byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	return unix.Writev(p.fd, bufs)
}

// WaitReadable waits for pending input. It returns TimedOut once timeout has
// elapsed since the call, EINTR included.
func (p *port) WaitReadable(timeout time.Duration) (Readiness, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return TimedOut, ErrPortClosed
	}

	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}

	for {
		n, err := unix.Poll(fds, pollMillis(time.Until(deadline)))
		if errors.Is(err, unix.EINTR) {
			if time.Now().Before(deadline) {
				continue
			}
			return TimedOut, nil
		}
		if err != nil {
			return TimedOut, err
		}
		if n == 0 {
			return TimedOut, nil
		}
		return Ready, nil
	}
}

// GetModemSignals returns current state of all modem control signals
func (p *port) GetModemSignals() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}

	status, err := getModemStatus(p.fd)
	if err != nil {
		return ModemSignals{}, err
	}

	return modemSignalsFromStatus(status), nil
}

// SetRTS manually sets the RTS signal state
// When true, asserts RTS (signals readiness to receive)
// When false, deasserts RTS (signals not ready)
func (p *port) SetRTS(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	return setModemLine(p.fd, unix.TIOCM_RTS, state)
}

// GetRTS returns current RTS signal state
func (p *port) GetRTS() (bool, error) {
	signals, err := p.GetModemSignals()
	return signals.RTS, err
}

// SetDTR sets DTR signal state
func (p *port) SetDTR(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	return setModemLine(p.fd, unix.TIOCM_DTR, state)
}

// GetDTR returns current DTR signal state
func (p *port) GetDTR() (bool, error) {
	signals, err := p.GetModemSignals()
	return signals.DTR, err
}

// SendBreak transmits a BREAK. A zero duration uses the driver default
// (0.25-0.5s), anything else is rounded up to whole deciseconds.
func (p *port) SendBreak(duration time.Duration) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	if duration <= 0 {
		return unix.IoctlSetInt(p.fd, unix.TCSBRK, 0)
	}
	return unix.IoctlSetInt(p.fd, unix.TCSBRKP, breakDeciseconds(duration))
}

// SetBaudRate switches the line speed of an open port
func (p *port) SetBaudRate(rate int) error {
	if rate <= 0 {
		return ErrInvalidBaudRate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	if err := setBaudRate(p.fd, rate); err != nil {
		return err
	}
	p.config.BaudRate = rate
	return nil
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}
