package harness

import (
	"bytes"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const baudTestString = "All your base are belong to us!\n"

// SetBaud switches the line to a new rate and exchanges a known string at it
type SetBaud struct {
	stream Stream
	setter BaudRateSetter
	role   Role
	rate   int
	log    *zap.Logger
}

var _ Test = (*SetBaud)(nil)

func NewSetBaud(s Stream, opts Options) (*SetBaud, error) {
	setter, ok := s.(BaudRateSetter)
	if !ok {
		return nil, configErrorf("stream cannot change baud rate")
	}

	rate := opts.BaudRate
	switch {
	case rate < 0:
		return nil, configErrorf("invalid baud rate %d", rate)
	case rate == 0:
		rate = DefaultBaudRate
	}

	return &SetBaud{
		stream: s,
		setter: setter,
		role:   opts.Role,
		rate:   rate,
		log:    opts.logger("set_baud"),
	}, nil
}

func (t *SetBaud) Run() (Report, error) {
	report := Report{Role: t.role, Bytes: len(baudTestString)}

	if err := t.setter.SetBaudRate(t.rate); err != nil {
		return report, ioError(fmt.Sprintf("set baud rate %d", t.rate), err)
	}
	t.log.Debug("baud rate set", zap.Int("rate", t.rate))
	report.Detail = fmt.Sprintf("%d baud", t.rate)

	start := time.Now()
	if t.role == Initiator {
		if _, err := writeAll(t.stream, []byte(baudTestString)); err != nil {
			return report, ioError("write", err)
		}
		report.Elapsed = time.Since(start)
		return report, nil
	}

	buf := make([]byte, len(baudTestString))
	if _, err := readFull(t.stream, buf); err != nil {
		return report, ioError("read", err)
	}
	report.Elapsed = time.Since(start)

	if !bytes.Equal(buf, []byte(baudTestString)) {
		return report, mismatchf("received %q at %d baud", buf, t.rate)
	}
	return report, nil
}

func (t *SetBaud) Close() error {
	return nil
}
