package harness

import (
	"fmt"
	"time"

	serial "github.com/allbin/uart-test"
)

// WaitFor waits up to timeout for input and then reads exactly once.
//
// n == 0 returns an empty slice without touching the stream. Expiry returns
// ErrTimeout, which some protocols treat as the passing result. Fewer than n
// bytes from the single read is an IOError wrapping ErrShortRead; the bytes
// that did arrive are returned alongside it.
func WaitFor(s Stream, n int, timeout time.Duration) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	readiness, err := s.WaitReadable(timeout)
	if err != nil {
		return nil, ioError("wait readable", err)
	}
	if readiness == serial.TimedOut {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}

	buf := make([]byte, n)
	got, err := s.Read(buf)
	if err != nil {
		return buf[:got], ioError("read", err)
	}
	if got < n {
		return buf[:got], ioError("read", fmt.Errorf("%w: %d of %d bytes", ErrShortRead, got, n))
	}
	return buf, nil
}
