// Package loopback provides an in-memory duplex serial link.
//
// The two ends of a Pipe behave like a pair of UARTs wired together with
// RTS/CTS: bytes written on one end are queued for the other, and an end that
// deasserts RTS stops receiving until it raises the line again. Held bytes are
// never dropped.
package loopback

import (
	"errors"
	"io"
	"sync"
	"time"

	serial "github.com/allbin/uart-test"
)

// breakSequence is how a marked BREAK appears in the input stream
var breakSequence = []byte{0xFF, 0x00, 0x00}

var (
	ErrClosed          = errors.New("loopback: end is closed")
	ErrInvalidBaudRate = errors.New("loopback: invalid baud rate")
)

// Option configures a Pipe
type Option func(*link)

// WithIgnoreRTS delivers bytes regardless of the receiver's RTS line,
// like a cable with the flow-control wires missing.
func WithIgnoreRTS() Option {
	return func(l *link) {
		l.ignoreRTS = true
	}
}

// WithBaudRate sets the initial line rate reported by both ends
func WithBaudRate(rate int) Option {
	return func(l *link) {
		l.baud = [2]int{rate, rate}
	}
}

type link struct {
	mu        sync.Mutex
	notify    chan struct{}
	ignoreRTS bool

	inbound [2][]byte // readable by side i
	held    [2][]byte // waiting for side i to raise RTS
	rts     [2]bool
	dtr     [2]bool
	closed  [2]bool
	baud    [2]int
}

// End is one side of the link
type End struct {
	link *link
	side int
}

// Pipe returns two connected ends with RTS and DTR asserted
func Pipe(opts ...Option) (*End, *End) {
	l := &link{
		notify: make(chan struct{}),
		rts:    [2]bool{true, true},
		dtr:    [2]bool{true, true},
		baud:   [2]int{115200, 115200},
	}
	for _, opt := range opts {
		opt(l)
	}
	return &End{link: l, side: 0}, &End{link: l, side: 1}
}

// broadcast wakes every waiter. Caller holds mu.
func (l *link) broadcast() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// deliver queues data for side. Caller holds mu.
func (l *link) deliver(side int, data []byte) {
	if l.rts[side] || l.ignoreRTS {
		l.inbound[side] = append(l.inbound[side], data...)
	} else {
		l.held[side] = append(l.held[side], data...)
	}
	l.broadcast()
}

func (e *End) peer() int {
	return 1 - e.side
}

// Path identifies the end in logs
func (e *End) Path() string {
	if e.side == 0 {
		return "loopback:a"
	}
	return "loopback:b"
}

// Read blocks until at least one byte is available. It returns io.EOF once
// the peer has closed and everything it sent has been consumed.
func (e *End) Read(p []byte) (int, error) {
	return e.Readv([][]byte{p})
}

// Readv scatters the available bytes across bufs in order
func (e *End) Readv(bufs [][]byte) (int, error) {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if l.closed[e.side] {
			return 0, ErrClosed
		}
		if len(l.inbound[e.side]) > 0 {
			n := 0
			for _, buf := range bufs {
				c := copy(buf, l.inbound[e.side][n:])
				n += c
				if n == len(l.inbound[e.side]) {
					break
				}
			}
			l.inbound[e.side] = l.inbound[e.side][n:]
			return n, nil
		}
		if l.closed[e.peer()] && len(l.held[e.side]) == 0 {
			return 0, io.EOF
		}

		wait := l.notify
		l.mu.Unlock()
		<-wait
		l.mu.Lock()
	}
}

// Write queues data for the peer in one piece
func (e *End) Write(p []byte) (int, error) {
	return e.Writev([][]byte{p})
}

// Writev gathers bufs into a single delivery
func (e *End) Writev(bufs [][]byte) (int, error) {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return 0, ErrClosed
	}
	if l.closed[e.peer()] {
		return 0, io.ErrClosedPipe
	}

	var data []byte
	for _, buf := range bufs {
		data = append(data, buf...)
	}
	if len(data) > 0 {
		l.deliver(e.peer(), data)
	}
	return len(data), nil
}

// WaitReadable reports Ready when a read would not block: data is queued or
// the peer has hung up.
func (e *End) WaitReadable(timeout time.Duration) (serial.Readiness, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if l.closed[e.side] {
			return serial.TimedOut, ErrClosed
		}
		if len(l.inbound[e.side]) > 0 || (l.closed[e.peer()] && len(l.held[e.side]) == 0) {
			return serial.Ready, nil
		}

		wait := l.notify
		l.mu.Unlock()
		select {
		case <-wait:
			l.mu.Lock()
		case <-timer.C:
			l.mu.Lock()
			if len(l.inbound[e.side]) > 0 {
				return serial.Ready, nil
			}
			return serial.TimedOut, nil
		}
	}
}

// SetRTS raises or drops this end's RTS. Raising it releases held bytes.
func (e *End) SetRTS(state bool) error {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return ErrClosed
	}
	l.rts[e.side] = state
	if state && len(l.held[e.side]) > 0 {
		l.inbound[e.side] = append(l.inbound[e.side], l.held[e.side]...)
		l.held[e.side] = nil
	}
	l.broadcast()
	return nil
}

// GetRTS returns this end's RTS state
func (e *End) GetRTS() (bool, error) {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return false, ErrClosed
	}
	return l.rts[e.side], nil
}

// SetDTR sets this end's DTR state
func (e *End) SetDTR(state bool) error {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return ErrClosed
	}
	l.dtr[e.side] = state
	return nil
}

// GetModemSignals mirrors a null-modem cable: CTS follows the peer's RTS,
// DSR and DCD follow the peer's DTR.
func (e *End) GetModemSignals() (serial.ModemSignals, error) {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return serial.ModemSignals{}, ErrClosed
	}
	return serial.ModemSignals{
		CTS: l.rts[e.peer()],
		DSR: l.dtr[e.peer()],
		DCD: l.dtr[e.peer()],
		RTS: l.rts[e.side],
		DTR: l.dtr[e.side],
	}, nil
}

// SetBaudRate records the new line rate for this end
func (e *End) SetBaudRate(rate int) error {
	if rate <= 0 {
		return ErrInvalidBaudRate
	}

	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return ErrClosed
	}
	l.baud[e.side] = rate
	return nil
}

// BaudRate returns the line rate last set on this end
func (e *End) BaudRate() int {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baud[e.side]
}

// SendBreak delivers a marked BREAK (FF 00 00) to the peer. The duration is
// accepted for interface compatibility only.
func (e *End) SendBreak(time.Duration) error {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return ErrClosed
	}
	if l.closed[e.peer()] {
		return io.ErrClosedPipe
	}
	l.deliver(e.peer(), append([]byte(nil), breakSequence...))
	return nil
}

// Buffered returns how many bytes are readable now and how many are held
// behind this end's deasserted RTS.
func (e *End) Buffered() (readable, held int) {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inbound[e.side]), len(l.held[e.side])
}

// Close shuts this end. The peer drains what was already delivered and then
// reads io.EOF.
func (e *End) Close() error {
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed[e.side] {
		return ErrClosed
	}
	l.closed[e.side] = true
	l.inbound[e.side] = nil
	l.held[e.side] = nil
	l.broadcast()
	return nil
}
