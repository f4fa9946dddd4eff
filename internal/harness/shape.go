package harness

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"go.uber.org/zap"
)

// iovecSegments are written with one writev and read with one readv
var iovecSegments = []string{"All ", "your ", "base ", "are belong ", "to us!\n"}

const iovecBufferSize = 16

// IOVec checks that scatter/gather shape does not change the byte stream
type IOVec struct {
	stream Stream
	role   Role
	log    *zap.Logger
}

var _ Test = (*IOVec)(nil)

func NewIOVec(s Stream, opts Options) (*IOVec, error) {
	return &IOVec{stream: s, role: opts.Role, log: opts.logger("iovec")}, nil
}

func (t *IOVec) Run() (Report, error) {
	total := len(strings.Join(iovecSegments, ""))
	report := Report{Role: t.role, Bytes: total}
	start := time.Now()

	if t.role == Initiator {
		bufs := make([][]byte, len(iovecSegments))
		for i, seg := range iovecSegments {
			bufs[i] = []byte(seg)
		}
		n, err := t.stream.Writev(bufs)
		if err != nil {
			return report, ioError("writev", err)
		}
		if n != total {
			return report, ioError("writev", fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, total))
		}
		report.Elapsed = time.Since(start)
		report.Detail = fmt.Sprintf("wrote %d segments", len(bufs))
		return report, nil
	}

	bufs := make([][]byte, len(iovecSegments))
	for i, seg := range iovecSegments {
		bufs[i] = make([]byte, len(seg), iovecBufferSize)
	}
	n, err := t.stream.Readv(bufs)
	if err != nil {
		return report, ioError("readv", err)
	}
	report.Elapsed = time.Since(start)
	t.log.Debug("readv returned", zap.Int("bytes", n))

	if n != total {
		return report, mismatchf("readv returned %d bytes, want %d", n, total)
	}
	for i, seg := range iovecSegments {
		if !bytes.Equal(bufs[i], []byte(seg)) {
			return report, mismatchf("segment %d is %q, want %q", i, bufs[i], seg)
		}
	}
	report.Detail = fmt.Sprintf("read %d segments", len(bufs))
	return report, nil
}

func (t *IOVec) Close() error {
	return nil
}

const (
	alignmentPayload = 10
	alignmentFill    = 'a'

	// Word offsets of the receive and send buffers
	receiveOffset = 3
	sendOffset    = 1
)

// misaligned returns an n-byte slice whose first byte sits at an address
// congruent to rem modulo 4
func misaligned(n, rem int) []byte {
	raw := make([]byte, n+2*wordSize)
	addr := int(uintptr(unsafe.Pointer(&raw[0])) % wordSize)
	off := (rem - addr + wordSize) % wordSize
	return raw[off : off+n]
}

// Alignment checks that unaligned user buffers transfer correctly
type Alignment struct {
	stream Stream
	role   Role
	log    *zap.Logger
}

var _ Test = (*Alignment)(nil)

func NewAlignment(s Stream, opts Options) (*Alignment, error) {
	return &Alignment{stream: s, role: opts.Role, log: opts.logger("alignment")}, nil
}

func (t *Alignment) Run() (Report, error) {
	report := Report{Role: t.role, Bytes: alignmentPayload}
	start := time.Now()

	if t.role == Initiator {
		buf := misaligned(alignmentPayload, sendOffset)
		for i := range buf {
			buf[i] = alignmentFill
		}
		if _, err := writeAll(t.stream, buf); err != nil {
			return report, ioError("write", err)
		}
		report.Elapsed = time.Since(start)
		return report, nil
	}

	buf := misaligned(alignmentPayload, receiveOffset)
	if _, err := readFull(t.stream, buf); err != nil {
		return report, ioError("read", err)
	}
	report.Elapsed = time.Since(start)

	for i, b := range buf {
		if b != alignmentFill {
			return report, mismatchf("byte %d is 0x%02x, want 0x%02x", i, b, alignmentFill)
		}
	}
	return report, nil
}

func (t *Alignment) Close() error {
	return nil
}
