package harness

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const tokenSize = 4

var (
	tokenCmd1 = []byte("CMD1")
	tokenCmd2 = []byte("CMD2")
	tokenOkay = []byte("OKAY")
)

// HandshakeState is a step of the rts_control lock-step exchange
type HandshakeState int

const (
	// Responder
	StateAwaitCmd1 HandshakeState = iota
	StateLineDeasserted
	StateAwaitTimeoutWindow
	StateAwaitCmd2

	// Initiator
	StateSendCmd1
	StateAwaitAck1
	StateSendCmd2
	StateAwaitAck2

	StateDone
	StateFailed
)

var stateNames = map[HandshakeState]string{
	StateAwaitCmd1:          "AwaitCmd1",
	StateLineDeasserted:     "LineDeasserted",
	StateAwaitTimeoutWindow: "AwaitTimeoutWindow",
	StateAwaitCmd2:          "AwaitCmd2",
	StateSendCmd1:           "SendCmd1",
	StateAwaitAck1:          "AwaitAck1",
	StateSendCmd2:           "SendCmd2",
	StateAwaitAck2:          "AwaitAck2",
	StateDone:               "Done",
	StateFailed:             "Failed",
}

func (s HandshakeState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("HandshakeState(%d)", int(s))
}

// RTSControl checks that dropping RTS stops the peer from delivering data.
//
// The responder deasserts RTS after CMD1 and then requires its next wait to
// time out: the initiator's CMD2 must stay held until RTS comes back.
type RTSControl struct {
	stream  Stream
	role    Role
	timeout time.Duration
	log     *zap.Logger

	state      HandshakeState
	deasserted bool
}

var _ Test = (*RTSControl)(nil)

func NewRTSControl(s Stream, opts Options) (*RTSControl, error) {
	timeout, err := opts.timeout(DefaultRTSTimeout)
	if err != nil {
		return nil, err
	}

	t := &RTSControl{
		stream:  s,
		role:    opts.Role,
		timeout: timeout,
		log:     opts.logger("rts_control"),
	}
	if t.role == Initiator {
		t.state = StateSendCmd1
	} else {
		t.state = StateAwaitCmd1
	}
	return t, nil
}

// State returns the step the handshake stopped at
func (t *RTSControl) State() HandshakeState {
	return t.state
}

func (t *RTSControl) Run() (Report, error) {
	start := time.Now()
	for t.state != StateDone {
		t.log.Debug("handshake step", zap.Stringer("state", t.state))

		next, err := t.step()
		if err != nil {
			report := Report{Role: t.role, Elapsed: time.Since(start), Detail: "failed in " + t.state.String()}
			return report, t.fail(err)
		}
		t.state = next
	}
	t.log.Debug("handshake step", zap.Stringer("state", t.state))

	return Report{
		Role:    t.role,
		Elapsed: time.Since(start),
		Detail:  "data held while RTS was deasserted",
	}, nil
}

func (t *RTSControl) step() (HandshakeState, error) {
	switch t.state {
	case StateAwaitCmd1:
		return StateLineDeasserted, t.expect(tokenCmd1, t.timeout)

	case StateLineDeasserted:
		if err := t.stream.SetRTS(false); err != nil {
			return t.state, ioError("deassert RTS", err)
		}
		t.deasserted = true
		return StateAwaitTimeoutWindow, t.send(tokenOkay)

	case StateAwaitTimeoutWindow:
		data, err := WaitFor(t.stream, tokenSize, t.timeout)
		switch {
		case errors.Is(err, ErrTimeout):
		case err == nil, errors.Is(err, ErrShortRead):
			return t.state, mismatchf("received %q while RTS was deasserted", data)
		default:
			return t.state, err
		}
		if err := t.stream.SetRTS(true); err != nil {
			return t.state, ioError("reassert RTS", err)
		}
		t.deasserted = false
		return StateAwaitCmd2, nil

	case StateAwaitCmd2:
		if err := t.expect(tokenCmd2, t.timeout); err != nil {
			return t.state, err
		}
		return StateDone, t.send(tokenOkay)

	case StateSendCmd1:
		return StateAwaitAck1, t.send(tokenCmd1)

	case StateAwaitAck1:
		return StateSendCmd2, t.expect(tokenOkay, t.timeout)

	case StateSendCmd2:
		return StateAwaitAck2, t.send(tokenCmd2)

	case StateAwaitAck2:
		// The responder spends one full window proving the line is held
		return StateDone, t.expect(tokenOkay, 2*t.timeout)

	default:
		return StateFailed, fmt.Errorf("rts_control: no transition from %s", t.state)
	}
}

// fail records the failure and restores RTS if this side dropped it
func (t *RTSControl) fail(err error) error {
	if t.deasserted {
		if rerr := t.stream.SetRTS(true); rerr != nil {
			t.log.Warn("failed to reassert RTS", zap.Error(rerr))
		} else {
			t.deasserted = false
		}
	}
	t.log.Debug("handshake failed", zap.Stringer("state", t.state), zap.Error(err))
	t.state = StateFailed
	return err
}

func (t *RTSControl) expect(token []byte, timeout time.Duration) error {
	data, err := WaitFor(t.stream, tokenSize, timeout)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", token, err)
	}
	if !bytes.Equal(data, token) {
		return mismatchf("expected %q, got %q", token, data)
	}
	return nil
}

func (t *RTSControl) send(token []byte) error {
	n, err := t.stream.Write(token)
	if err != nil {
		return ioError("write "+string(token), err)
	}
	if n != len(token) {
		return ioError("write "+string(token), fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(token)))
	}
	return nil
}

// Close makes sure RTS is left asserted
func (t *RTSControl) Close() error {
	if !t.deasserted {
		return nil
	}
	if err := t.stream.SetRTS(true); err != nil {
		return ioError("reassert RTS", err)
	}
	t.deasserted = false
	return nil
}
