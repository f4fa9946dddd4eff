package harness

import (
	"testing"
	"time"

	serial "github.com/allbin/uart-test"
	"github.com/allbin/uart-test/internal/loopback"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type runResult struct {
	report Report
	err    error
}

// runPair runs initiator on one end of a loopback link and responder on the
// other, concurrently, and waits for both.
func runPair(t *testing.T, initiator, responder Descriptor, iopts, ropts Options, pipeOpts ...loopback.Option) (runResult, runResult) {
	t.Helper()

	a, b := loopback.Pipe(pipeOpts...)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	iopts.Role = Initiator
	ropts.Role = Responder
	if iopts.Logger == nil {
		iopts.Logger = zaptest.NewLogger(t)
	}
	if ropts.Logger == nil {
		ropts.Logger = zaptest.NewLogger(t)
	}

	rc := make(chan runResult, 1)
	go func() {
		report, err := responder.Execute(b, ropts)
		rc <- runResult{report, err}
	}()

	report, err := initiator.Execute(a, iopts)
	ires := runResult{report, err}

	select {
	case rres := <-rc:
		return ires, rres
	case <-time.After(10 * time.Second):
		t.Fatal("responder did not finish")
		return ires, runResult{}
	}
}

func lookup(t *testing.T, name string) Descriptor {
	t.Helper()
	d, ok := DefaultRegistry().Lookup(name)
	require.True(t, ok, "protocol %s", name)
	return d
}

// scriptedStream replays canned reads and records writes
type scriptedStream struct {
	reads      [][]byte
	readErr    error
	writes     [][]byte
	writeLimit int // bytes accepted per write, 0 for unlimited
	readiness  []bool
	rts        bool
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, s.readErr
	}
	n := copy(p, s.reads[0])
	s.reads = s.reads[1:]
	return n, nil
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	n := len(p)
	if s.writeLimit > 0 && n > s.writeLimit {
		n = s.writeLimit
	}
	s.writes = append(s.writes, append([]byte(nil), p[:n]...))
	return n, nil
}

func (s *scriptedStream) Readv(bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		n, err := s.Read(buf)
		total += n
		if err != nil || n < len(buf) {
			return total, err
		}
	}
	return total, nil
}

func (s *scriptedStream) Writev(bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		n, _ := s.Write(buf)
		total += n
	}
	return total, nil
}

func (s *scriptedStream) WaitReadable(time.Duration) (serial.Readiness, error) {
	if len(s.readiness) > 0 {
		ready := s.readiness[0]
		s.readiness = s.readiness[1:]
		if !ready {
			return serial.TimedOut, nil
		}
	}
	return serial.Ready, nil
}

func (s *scriptedStream) SetRTS(state bool) error {
	s.rts = state
	return nil
}

func (s *scriptedStream) GetRTS() (bool, error) {
	return s.rts, nil
}

// plainStream hides every optional capability of the wrapped stream
type plainStream struct {
	Stream
}
