package harness

import (
	"errors"
	"fmt"

	serial "github.com/allbin/uart-test"
	"golang.org/x/sys/unix"
)

// Outcome classifies the result of a protocol run
type Outcome int

const (
	Success Outcome = iota
	Mismatch
	Timeout
	IoError
	ConfigError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Mismatch:
		return "mismatch"
	case Timeout:
		return "timeout"
	case IoError:
		return "I/O error"
	case ConfigError:
		return "configuration error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Code is the negative errno conventionally returned for the outcome.
// IoError reports -EIO here; ExitStatus recovers the precise errno.
func (o Outcome) Code() int {
	switch o {
	case Success:
		return 0
	case Mismatch, ConfigError:
		return -int(unix.EINVAL)
	case Timeout:
		return -int(unix.EAGAIN)
	default:
		return -int(unix.EIO)
	}
}

// OutcomeOf classifies the error returned by a run. Errors from outside the
// taxonomy count as I/O errors.
func OutcomeOf(err error) Outcome {
	var ioErr *IOError
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrConfig), errors.Is(err, serial.ErrInvalidConfig), errors.Is(err, serial.ErrInvalidBaudRate):
		return ConfigError
	case errors.Is(err, ErrTimeout):
		return Timeout
	case errors.As(err, &ioErr):
		return IoError
	case errors.Is(err, ErrMismatch):
		return Mismatch
	default:
		return IoError
	}
}

// ExitStatus maps an error to the process exit status: 0 on success,
// otherwise a positive errno.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, serial.ErrDeviceNotFound):
		return int(unix.ENOENT)
	case errors.Is(err, serial.ErrPermissionDenied):
		return int(unix.EACCES)
	case errors.Is(err, serial.ErrDeviceInUse):
		return int(unix.EBUSY)
	}

	outcome := OutcomeOf(err)
	if outcome != IoError {
		return -outcome.Code()
	}

	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return int(ioErr.Errno())
	}
	var errno unix.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return int(unix.EIO)
}
