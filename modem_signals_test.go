package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestModemSignalsFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected ModemSignals
	}{
		{"none", 0, ModemSignals{}},
		{"CTS only", unix.TIOCM_CTS, ModemSignals{CTS: true}},
		{"DCD maps from CAR", unix.TIOCM_CAR, ModemSignals{DCD: true}},
		{"outputs", unix.TIOCM_RTS | unix.TIOCM_DTR, ModemSignals{RTS: true, DTR: true}},
		{
			"all",
			unix.TIOCM_CTS | unix.TIOCM_DSR | unix.TIOCM_RI | unix.TIOCM_CAR | unix.TIOCM_RTS | unix.TIOCM_DTR,
			ModemSignals{CTS: true, DSR: true, RI: true, DCD: true, RTS: true, DTR: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, modemSignalsFromStatus(tt.status))
		})
	}
}

func TestBreakDeciseconds(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected int
	}{
		{time.Millisecond, 1},
		{100 * time.Millisecond, 1},
		{101 * time.Millisecond, 2},
		{250 * time.Millisecond, 3},
		{time.Second, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, breakDeciseconds(tt.duration), "duration %v", tt.duration)
	}
}

func TestPollMillis(t *testing.T) {
	assert.Equal(t, 0, pollMillis(-time.Second))
	assert.Equal(t, 0, pollMillis(0))
	assert.Equal(t, 0, pollMillis(500*time.Microsecond))
	assert.Equal(t, 1500, pollMillis(1500*time.Millisecond))
}

// TestOperationsOnClosedPort checks every method guards against a closed fd
func TestOperationsOnClosedPort(t *testing.T) {
	p := &port{closed: true, fd: -1}

	_, err := p.GetModemSignals()
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, p.SetRTS(true), ErrPortClosed)
	_, err = p.GetRTS()
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, p.SetDTR(false), ErrPortClosed)
	_, err = p.GetDTR()
	assert.ErrorIs(t, err, ErrPortClosed)

	_, err = p.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrPortClosed)
	_, err = p.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrPortClosed)
	_, err = p.Readv([][]byte{make([]byte, 1)})
	assert.ErrorIs(t, err, ErrPortClosed)
	_, err = p.Writev([][]byte{[]byte("x")})
	assert.ErrorIs(t, err, ErrPortClosed)

	readiness, err := p.WaitReadable(time.Millisecond)
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.Equal(t, TimedOut, readiness)

	assert.ErrorIs(t, p.SendBreak(0), ErrPortClosed)
	assert.ErrorIs(t, p.SetBaudRate(9600), ErrPortClosed)
	assert.ErrorIs(t, p.Drain(), ErrPortClosed)
	assert.ErrorIs(t, p.FlushInput(), ErrPortClosed)
	assert.ErrorIs(t, p.FlushOutput(), ErrPortClosed)
	assert.ErrorIs(t, p.Close(), ErrPortClosed)
}

func TestSetBaudRateRejectsNonPositive(t *testing.T) {
	p := &port{closed: true, fd: -1}
	assert.ErrorIs(t, p.SetBaudRate(0), ErrInvalidBaudRate)
	assert.ErrorIs(t, p.SetBaudRate(-1), ErrInvalidBaudRate)
}
