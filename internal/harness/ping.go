package harness

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	serial "github.com/allbin/uart-test"
	"go.uber.org/zap"
)

// pingFill is the value of every payload byte
const pingFill = 'a'

// receivePoll bounds how long the receiver waits for input before it checks
// whether it has been cancelled
const receivePoll = 100 * time.Millisecond

var errReceiveCancelled = errors.New("receive cancelled")

// Direction is the half of the duplex link a worker uses
type Direction int

const (
	Send Direction = iota
	Receive
)

func (d Direction) String() string {
	if d == Send {
		return "send"
	}
	return "receive"
}

// TransferResult is what a ping worker hands back when joined
type TransferResult struct {
	Direction Direction
	Bytes     int
	Elapsed   time.Duration
	Err       error
}

// worker runs one transfer on its own goroutine
type worker struct {
	done   chan TransferResult
	stop   chan struct{}
	cancel sync.Once
	result TransferResult
	joined bool
}

func startWorker(fn func(stop <-chan struct{}) TransferResult) *worker {
	w := &worker{
		done: make(chan TransferResult, 1),
		stop: make(chan struct{}),
	}
	go func() {
		w.done <- fn(w.stop)
	}()
	return w
}

// Cancel asks the worker to give up. Only the receiver honours it, between
// polls; a finished worker is unaffected.
func (w *worker) Cancel() {
	w.cancel.Do(func() { close(w.stop) })
}

// Join waits for the worker and returns its result. Later calls return the
// same value.
func (w *worker) Join() TransferResult {
	if !w.joined {
		w.result = <-w.done
		w.joined = true
	}
	return w.result
}

func sendPayload(s Stream, count int) TransferResult {
	buf := bytes.Repeat([]byte{pingFill}, count)

	start := time.Now()
	n, err := writeAll(s, buf)
	res := TransferResult{Direction: Send, Bytes: n, Elapsed: time.Since(start)}
	if err != nil {
		res.Err = ioError("write payload", err)
	}
	return res
}

// receivePayload reads count bytes, polling so that stop can interrupt a
// peer that never sends. A zero-byte read after readiness is a short read.
func receivePayload(s Stream, count int, stop <-chan struct{}) TransferResult {
	buf := make([]byte, count)

	start := time.Now()
	n, err := receiveFull(s, buf, stop)
	res := TransferResult{Direction: Receive, Bytes: n, Elapsed: time.Since(start)}
	if err != nil {
		res.Err = ioError("read payload", err)
		return res
	}

	for i, b := range buf {
		if b != pingFill {
			res.Err = mismatchf("payload byte %d is 0x%02x, want 0x%02x", i, b, pingFill)
			break
		}
	}
	return res
}

func receiveFull(s Stream, buf []byte, stop <-chan struct{}) (int, error) {
	got := 0
	for got < len(buf) {
		select {
		case <-stop:
			return got, fmt.Errorf("%w after %d of %d bytes", errReceiveCancelled, got, len(buf))
		default:
		}

		readiness, err := s.WaitReadable(receivePoll)
		if err != nil {
			return got, err
		}
		if readiness == serial.TimedOut {
			continue
		}

		n, err := s.Read(buf[got:])
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

// Ping measures one-way or two-way transfer time of a negotiated payload.
//
// The initiator sends {mode, count} and waits for OKAY before any worker
// starts. The responder starts its receiver before acknowledging, so the
// payload that follows the ack is never missed.
type Ping struct {
	stream Stream
	role   Role
	count  int
	mode   Command
	log    *zap.Logger

	sender   *worker
	receiver *worker
}

var _ Test = (*Ping)(nil)

// NewPing validates the initiator's request. A responder learns count and
// mode from the peer.
func NewPing(s Stream, opts Options) (*Ping, error) {
	p := &Ping{
		stream: s,
		role:   opts.Role,
		count:  opts.Count,
		mode:   opts.Mode,
		log:    opts.logger("ping"),
	}

	if p.role == Initiator {
		if p.mode == CommandInvalid {
			p.mode = CommandSend
		}
		if !validPingRequest(p.mode, p.count) {
			return nil, configErrorf("ping %s of %d bytes (count must be 1..%d)", p.mode, p.count, MaxPingCount)
		}
	}
	return p, nil
}

func validPingRequest(mode Command, count int) bool {
	if mode != CommandSend && mode != CommandSendRecv {
		return false
	}
	return count > 0 && count <= MaxPingCount
}

func (p *Ping) Run() (Report, error) {
	var err error
	if p.role == Initiator {
		err = p.initiate()
	} else {
		err = p.respond()
	}
	if err != nil {
		return Report{Role: p.role}, err
	}
	return p.complete()
}

func (p *Ping) initiate() error {
	req := Frame{Command: p.mode, Arg: uint32(p.count)}
	p.log.Debug("sending request", zap.Stringer("command", req.Command), zap.Uint32("count", req.Arg))
	if err := WriteFrame(p.stream, req); err != nil {
		return err
	}

	ack, err := ReadFrame(p.stream)
	if err != nil {
		return err
	}
	p.log.Debug("received ack", zap.Stringer("command", ack.Command))
	if ack.Command != CommandOkay {
		return mismatchf("peer answered %s to %s request", ack.Command, p.mode)
	}

	if p.mode == CommandSendRecv {
		p.receiver = startWorker(func(stop <-chan struct{}) TransferResult { return receivePayload(p.stream, p.count, stop) })
	}
	p.sender = startWorker(func(<-chan struct{}) TransferResult { return sendPayload(p.stream, p.count) })
	return nil
}

func (p *Ping) respond() error {
	req, err := ReadFrame(p.stream)
	if err != nil {
		return err
	}
	p.log.Debug("received request", zap.Stringer("command", req.Command), zap.Uint32("count", req.Arg))

	if !validPingRequest(req.Command, int(req.Arg)) {
		if err := WriteFrame(p.stream, Frame{Command: CommandNOK}); err != nil {
			return err
		}
		return mismatchf("rejected %s request for %d bytes", req.Command, req.Arg)
	}
	p.mode = req.Command
	p.count = int(req.Arg)

	p.receiver = startWorker(func(stop <-chan struct{}) TransferResult { return receivePayload(p.stream, p.count, stop) })
	if err := WriteFrame(p.stream, Frame{Command: CommandOkay}); err != nil {
		// The peer will never send the payload
		p.receiver.Cancel()
		return err
	}
	if p.mode == CommandSendRecv {
		p.sender = startWorker(func(<-chan struct{}) TransferResult { return sendPayload(p.stream, p.count) })
	}
	return nil
}

// complete joins the sender and then the receiver. An I/O failure outranks
// a mismatch; among equals the first joined wins.
func (p *Ping) complete() (Report, error) {
	report := Report{Role: p.role, Bytes: p.count}

	var sent, received *TransferResult
	if p.sender != nil {
		res := p.sender.Join()
		report.Transfers = append(report.Transfers, res)
		sent = &res
	}
	if p.receiver != nil {
		res := p.receiver.Join()
		report.Transfers = append(report.Transfers, res)
		received = &res
	}

	switch {
	case received != nil:
		report.Elapsed = received.Elapsed
	case sent != nil:
		report.Elapsed = sent.Elapsed
	}

	for _, res := range report.Transfers {
		p.log.Debug("worker done",
			zap.Stringer("direction", res.Direction),
			zap.Int("bytes", res.Bytes),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(res.Err))
	}

	if err := resolveTransfers(report.Transfers); err != nil {
		return report, err
	}
	report.Detail = fmt.Sprintf("%s of %d bytes", p.mode, p.count)
	return report, nil
}

func resolveTransfers(results []TransferResult) error {
	var mismatch error
	for _, res := range results {
		var ioErr *IOError
		if errors.As(res.Err, &ioErr) {
			return res.Err
		}
		if mismatch == nil && res.Err != nil {
			mismatch = res.Err
		}
	}
	return mismatch
}

// Close joins any worker still running. A receiver left behind by a failed
// handshake is cancelled first.
func (p *Ping) Close() error {
	if p.sender != nil {
		p.sender.Join()
	}
	if p.receiver != nil {
		p.receiver.Cancel()
		p.receiver.Join()
	}
	return nil
}
