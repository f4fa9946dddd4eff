// Package harness implements the two-party UART test protocols.
//
// Every protocol runs against a Stream, one end of a duplex byte channel,
// while an instance of the same protocol in the opposite Role drives the
// other end. A run yields a Report and an error whose class is given by
// OutcomeOf.
package harness

import (
	"fmt"
	"time"

	serial "github.com/allbin/uart-test"
)

// Stream is the byte channel a protocol runs over. serial.Port and
// loopback.End both satisfy it.
//
// WaitReadable must return within timeout measured from the call. No method
// retries internally.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Readv(bufs [][]byte) (int, error)
	Writev(bufs [][]byte) (int, error)
	WaitReadable(timeout time.Duration) (serial.Readiness, error)
	SetRTS(state bool) error
	GetRTS() (bool, error)
}

// BaudRateSetter is implemented by streams that can change line speed
type BaudRateSetter interface {
	SetBaudRate(rate int) error
}

// BreakSender is implemented by streams that can transmit a BREAK
type BreakSender interface {
	SendBreak(duration time.Duration) error
}

var (
	_ Stream         = serial.Port(nil)
	_ BaudRateSetter = serial.Port(nil)
	_ BreakSender    = serial.Port(nil)
)

// Role is the side of a two-party protocol an instance plays
type Role int

const (
	Initiator Role = iota // sender, client
	Responder             // receiver, server
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}
