package harness

import (
	"errors"
	"fmt"
	"io"
	"testing"

	serial "github.com/allbin/uart-test"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Success},
		{"mismatch", mismatchf("bad byte"), Mismatch},
		{"wrapped mismatch", fmt.Errorf("step: %w", mismatchf("x")), Mismatch},
		{"timeout", fmt.Errorf("waiting: %w", ErrTimeout), Timeout},
		{"config", configErrorf("count 0"), ConfigError},
		{"unknown protocol", ErrUnknownProtocol, ConfigError},
		{"invalid baud", serial.ErrInvalidBaudRate, ConfigError},
		{"io", ioError("read", io.EOF), IoError},
		{"foreign", errors.New("boom"), IoError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeOf(tt.err))
		})
	}
}

func TestOutcomeCode(t *testing.T) {
	assert.Equal(t, 0, Success.Code())
	assert.Equal(t, -int(unix.EINVAL), Mismatch.Code())
	assert.Equal(t, -int(unix.EINVAL), ConfigError.Code())
	assert.Equal(t, -int(unix.EAGAIN), Timeout.Code())
	assert.Equal(t, -int(unix.EIO), IoError.Code())
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"mismatch", mismatchf("x"), int(unix.EINVAL)},
		{"config", configErrorf("x"), int(unix.EINVAL)},
		{"timeout", ErrTimeout, int(unix.EAGAIN)},
		{"device not found", fmt.Errorf("%w: /dev/ttyS9: %w", serial.ErrDeviceNotFound, unix.ENOENT), int(unix.ENOENT)},
		{"permission", serial.ErrPermissionDenied, int(unix.EACCES)},
		{"io with errno", ioError("write", unix.EPIPE), int(unix.EPIPE)},
		{"io without errno", ioError("read", io.EOF), int(unix.EIO)},
		{"bare errno", fmt.Errorf("ioctl: %w", unix.ENOTTY), int(unix.ENOTTY)},
		{"foreign", errors.New("boom"), int(unix.EIO)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitStatus(tt.err))
		})
	}
}

func TestMismatchErrorIs(t *testing.T) {
	err := mismatchf("segment %d", 2)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, "protocol mismatch: segment 2", err.Error())

	var m *MismatchError
	assert.ErrorAs(t, err, &m)
	assert.Equal(t, "segment 2", m.Detail)
}
