package harness

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrMismatch   = errors.New("protocol mismatch")
	ErrTimeout    = errors.New("timed out")
	ErrConfig     = errors.New("invalid test configuration")
	ErrShortRead  = errors.New("short read")
	ErrShortWrite = errors.New("short write")

	// Registry errors, both configuration errors
	ErrUnknownProtocol   = fmt.Errorf("%w: unknown protocol", ErrConfig)
	ErrDuplicateProtocol = fmt.Errorf("%w: duplicate protocol", ErrConfig)
)

// MismatchError reports data that differed from what the protocol expected
type MismatchError struct {
	Detail string
}

func (e *MismatchError) Error() string {
	return "protocol mismatch: " + e.Detail
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

func mismatchf(format string, args ...any) error {
	return &MismatchError{Detail: fmt.Sprintf(format, args...)}
}

// IOError is a device or channel failure. Op names the failed step.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Errno returns the underlying errno, or EIO when the failure carries none
func (e *IOError) Errno() unix.Errno {
	var errno unix.Errno
	if errors.As(e.Err, &errno) && errno != 0 {
		return errno
	}
	return unix.EIO
}

func ioError(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
