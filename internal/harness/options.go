package harness

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultRTSTimeout       = 20 * time.Second
	DefaultWaitBreakTimeout = 10 * time.Second
	DefaultBaudRate         = 115200
	DefaultPingCount        = 1024

	// MaxPingCount bounds the payload a responder agrees to receive
	MaxPingCount = 16 << 20
)

// Options are the parsed arguments handed to a protocol constructor. Each
// protocol reads only the fields it needs; zero values select defaults.
type Options struct {
	Role     Role
	Count    int           // ping payload size
	Mode     Command       // ping request mode
	Timeout  time.Duration // rts_control step window, waitbreak deadline
	BaudRate int           // set_baud target rate
	Duration time.Duration // sendbreak length, 0 for the driver default
	Logger   *zap.Logger
}

func (o Options) logger(protocol string) *zap.Logger {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("protocol", protocol), zap.Stringer("role", o.Role))
}

func (o Options) timeout(def time.Duration) (time.Duration, error) {
	switch {
	case o.Timeout < 0:
		return 0, configErrorf("negative timeout %v", o.Timeout)
	case o.Timeout == 0:
		return def, nil
	default:
		return o.Timeout, nil
	}
}

// Report describes a finished run
type Report struct {
	Protocol  string
	Role      Role
	Bytes     int
	Elapsed   time.Duration
	Transfers []TransferResult
	Detail    string
}

// Throughput is bytes per second over Elapsed, 0 when nothing was timed
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}
