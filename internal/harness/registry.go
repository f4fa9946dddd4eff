package harness

import (
	"fmt"

	serial "github.com/allbin/uart-test"
)

// Test is one constructed protocol run. Close always follows Run and
// releases whatever Run started.
type Test interface {
	Run() (Report, error)
	Close() error
}

// Constructor validates options and binds a protocol to a stream
type Constructor func(s Stream, opts Options) (Test, error)

// Descriptor names a protocol and how to build it
type Descriptor struct {
	Name        string
	Description string
	New         Constructor

	// PortOptions are applied when the CLI opens a device for this protocol
	PortOptions []serial.Option
	// InitiatorPortOptions are added on top of PortOptions for the
	// initiator only
	InitiatorPortOptions []serial.Option

	// Peer is the protocol run on the other end in a self-test. Empty means
	// the same protocol in the opposite role.
	Peer string
}

// PortOptionsFor returns the device options for one end of the protocol
func (d Descriptor) PortOptionsFor(role Role) []serial.Option {
	opts := append([]serial.Option(nil), d.PortOptions...)
	if role == Initiator {
		opts = append(opts, d.InitiatorPortOptions...)
	}
	return opts
}

// Execute runs New, Run and Close in order. Close runs whenever New
// succeeded; the first error wins.
func (d Descriptor) Execute(s Stream, opts Options) (Report, error) {
	test, err := d.New(s, opts)
	if err != nil {
		return Report{Protocol: d.Name, Role: opts.Role}, err
	}

	report, err := test.Run()
	if cerr := test.Close(); err == nil {
		err = cerr
	}
	report.Protocol = d.Name
	report.Role = opts.Role
	return report, err
}

// Registry is the fixed set of protocols the dispatcher can select from
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// NewRegistry builds a registry, rejecting unnamed, unbuildable or
// duplicate entries
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" || d.New == nil {
			return nil, configErrorf("incomplete descriptor %q", d.Name)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w %q", ErrDuplicateProtocol, d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	for _, d := range descriptors {
		if d.Peer != "" {
			if _, ok := r.byName[d.Peer]; !ok {
				return nil, fmt.Errorf("%w %q (peer of %q)", ErrUnknownProtocol, d.Peer, d.Name)
			}
		}
	}
	return r, nil
}

// Lookup returns the descriptor registered under name
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Descriptors returns every protocol in registration order
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Execute runs the named protocol on s
func (r *Registry) Execute(name string, s Stream, opts Options) (Report, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return Report{Protocol: name, Role: opts.Role}, fmt.Errorf("%w %q", ErrUnknownProtocol, name)
	}
	return d.Execute(s, opts)
}

// PeerOf returns the descriptor that drives the other end of name in a
// self-test
func (r *Registry) PeerOf(name string) (Descriptor, bool) {
	d, ok := r.Lookup(name)
	if !ok {
		return Descriptor{}, false
	}
	if d.Peer == "" {
		return d, true
	}
	return r.Lookup(d.Peer)
}

// DefaultRegistry returns the built-in protocols
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Descriptor{
			Name:        "ping",
			Description: "ping test over a serial line",
			New:         func(s Stream, o Options) (Test, error) { return NewPing(s, o) },
		},
		Descriptor{
			Name:        "rts_control",
			Description: "Test RTS control",
			New:         func(s Stream, o Options) (Test, error) { return NewRTSControl(s, o) },
			// The responder drives RTS by hand
			InitiatorPortOptions: []serial.Option{serial.WithFlowControl(serial.FlowControlRTSCTS)},
		},
		Descriptor{
			Name:        "iovec",
			Description: "iovec test over a serial line",
			New:         func(s Stream, o Options) (Test, error) { return NewIOVec(s, o) },
		},
		Descriptor{
			Name:        "alignment",
			Description: "alignment test over a serial line",
			New:         func(s Stream, o Options) (Test, error) { return NewAlignment(s, o) },
		},
		Descriptor{
			Name:        "set_baud",
			Description: "Set baudrate",
			New:         func(s Stream, o Options) (Test, error) { return NewSetBaud(s, o) },
		},
		Descriptor{
			Name:        "sendbreak",
			Description: "send BREAK to the specified port",
			New:         func(s Stream, o Options) (Test, error) { return NewSendBreak(s, o) },
			Peer:        "waitbreak",
		},
		Descriptor{
			Name:        "waitbreak",
			Description: "waits for BREAK condition on the specified port",
			New:         func(s Stream, o Options) (Test, error) { return NewWaitBreak(s, o) },
			PortOptions: []serial.Option{serial.WithBreakMarking()},
			Peer:        "sendbreak",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
