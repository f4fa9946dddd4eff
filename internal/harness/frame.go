package harness

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Command is the first word of a ping negotiation frame
type Command uint32

const (
	CommandInvalid Command = iota
	CommandSend
	CommandSendRecv
	CommandOkay
	CommandNOK
)

func (c Command) String() string {
	switch c {
	case CommandInvalid:
		return "INVALID"
	case CommandSend:
		return "SEND"
	case CommandSendRecv:
		return "SEND_RECV"
	case CommandOkay:
		return "OKAY"
	case CommandNOK:
		return "NOK"
	default:
		return fmt.Sprintf("Command(%d)", uint32(c))
	}
}

// ParseCommand accepts the request modes an initiator may send. Names are
// case sensitive.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "SEND":
		return CommandSend, nil
	case "SEND_RECV":
		return CommandSendRecv, nil
	default:
		return CommandInvalid, configErrorf("unknown ping command %q (want SEND or SEND_RECV)", s)
	}
}

const (
	wordSize  = 4
	FrameSize = 2 * wordSize
)

// Frame is a command and its argument, sent big-endian
type Frame struct {
	Command Command
	Arg     uint32
}

// Encode returns the 8-byte wire form
func (f Frame) Encode() []byte {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(buf[:wordSize], uint32(f.Command))
	binary.BigEndian.PutUint32(buf[wordSize:], f.Arg)
	return buf
}

// DecodeFrame parses the 8-byte wire form
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: frame is %d bytes, want %d", ErrShortRead, len(b), FrameSize)
	}
	return Frame{
		Command: Command(binary.BigEndian.Uint32(b[:wordSize])),
		Arg:     binary.BigEndian.Uint32(b[wordSize:]),
	}, nil
}

// WriteFrame sends f as two 4-byte writes. A partial write is fatal.
func WriteFrame(w io.Writer, f Frame) error {
	buf := f.Encode()
	for i := 0; i < FrameSize; i += wordSize {
		n, err := w.Write(buf[i : i+wordSize])
		if err != nil {
			return ioError("write frame", err)
		}
		if n != wordSize {
			return ioError("write frame", fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, wordSize))
		}
	}
	return nil
}

// ReadFrame receives a frame as two 4-byte reads. A partial read is fatal.
func ReadFrame(r io.Reader) (Frame, error) {
	buf := make([]byte, FrameSize)
	for i := 0; i < FrameSize; i += wordSize {
		n, err := r.Read(buf[i : i+wordSize])
		if err != nil {
			return Frame{}, ioError("read frame", err)
		}
		if n != wordSize {
			return Frame{}, ioError("read frame", fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, wordSize))
		}
	}
	return DecodeFrame(buf)
}
