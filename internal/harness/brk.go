package harness

import (
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/allbin/uart-test"
	"go.uber.org/zap"
)

// SendBreak transmits a single BREAK condition
type SendBreak struct {
	sender   BreakSender
	role     Role
	duration time.Duration
	log      *zap.Logger
}

var _ Test = (*SendBreak)(nil)

func NewSendBreak(s Stream, opts Options) (*SendBreak, error) {
	sender, ok := s.(BreakSender)
	if !ok {
		return nil, configErrorf("stream cannot send BREAK")
	}
	if opts.Duration < 0 {
		return nil, configErrorf("negative break duration %v", opts.Duration)
	}
	return &SendBreak{
		sender:   sender,
		role:     opts.Role,
		duration: opts.Duration,
		log:      opts.logger("sendbreak"),
	}, nil
}

func (t *SendBreak) Run() (Report, error) {
	start := time.Now()
	if err := t.sender.SendBreak(t.duration); err != nil {
		return Report{Role: t.role}, ioError("send break", err)
	}
	t.log.Debug("break sent", zap.Duration("duration", t.duration))

	detail := "driver default duration"
	if t.duration > 0 {
		detail = t.duration.String()
	}
	return Report{Role: t.role, Elapsed: time.Since(start), Detail: detail}, nil
}

func (t *SendBreak) Close() error {
	return nil
}

// breakMarker scans for the FF 00 00 sequence a break-marking port inserts.
// FF FF is an escaped data byte and never starts a marker.
type breakMarker struct {
	matched int
}

var breakSequence = [...]byte{0xFF, 0x00, 0x00}

// scan consumes p and returns the index just past the marker, or -1
func (m *breakMarker) scan(p []byte) int {
	for i, b := range p {
		switch {
		case m.matched == 1 && b == 0xFF:
			m.matched = 0
		case b == breakSequence[m.matched]:
			m.matched++
		case b == 0xFF:
			m.matched = 1
		default:
			m.matched = 0
		}
		if m.matched == len(breakSequence) {
			m.matched = 0
			return i + 1
		}
	}
	return -1
}

// WaitBreak waits for a BREAK to arrive. The port must be opened with
// serial.WithBreakMarking.
type WaitBreak struct {
	stream  Stream
	role    Role
	timeout time.Duration
	log     *zap.Logger
}

var _ Test = (*WaitBreak)(nil)

func NewWaitBreak(s Stream, opts Options) (*WaitBreak, error) {
	timeout, err := opts.timeout(DefaultWaitBreakTimeout)
	if err != nil {
		return nil, err
	}
	return &WaitBreak{
		stream:  s,
		role:    opts.Role,
		timeout: timeout,
		log:     opts.logger("waitbreak"),
	}, nil
}

func (t *WaitBreak) Run() (Report, error) {
	start := time.Now()
	deadline := start.Add(t.timeout)
	report := Report{Role: t.role}

	var marker breakMarker
	buf := make([]byte, 64)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("no break: %w after %v", ErrTimeout, t.timeout)
		}

		readiness, err := t.stream.WaitReadable(remaining)
		if err != nil {
			return report, ioError("wait readable", err)
		}
		if readiness == serial.TimedOut {
			continue
		}

		n, err := t.stream.Read(buf)
		if n > 0 {
			if end := marker.scan(buf[:n]); end >= 0 {
				report.Bytes = max(report.Bytes+end-len(breakSequence), 0)
				report.Elapsed = time.Since(start)
				report.Detail = fmt.Sprintf("break received after %d data bytes", report.Bytes)
				t.log.Debug("break detected", zap.Duration("elapsed", report.Elapsed))
				return report, nil
			}
			report.Bytes += n
		}
		if errors.Is(err, io.EOF) {
			return report, ioError("read", fmt.Errorf("%w: link closed before break", io.ErrUnexpectedEOF))
		}
		if err != nil {
			return report, ioError("read", err)
		}
	}
}

func (t *WaitBreak) Close() error {
	return nil
}
