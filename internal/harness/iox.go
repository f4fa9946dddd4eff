package harness

import (
	"fmt"
	"io"
)

// readFull reads until buf is full. A read that returns no bytes and no
// error ends the loop with ErrShortRead instead of spinning.
func readFull(r io.Reader, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, got, len(buf))
		}
	}
	return got, nil
}

// writeAll writes data, looping over partial writes
func writeAll(w io.Writer, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := w.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, written, len(data))
		}
	}
	return written, nil
}
