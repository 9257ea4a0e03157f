// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the readiness multiplexer contract used by the event loop.

package api

// Interest is a bit set of readiness conditions.
type Interest uint8

const (
	InterestAccept Interest = 1 << iota
	InterestRead
	InterestWrite
	InterestError
)

func (i Interest) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if i&InterestAccept != 0 {
		add("accept")
	}
	if i&InterestRead != 0 {
		add("read")
	}
	if i&InterestWrite != 0 {
		add("write")
	}
	if i&InterestError != 0 {
		add("error")
	}
	if s == "" {
		return "none"
	}
	return s
}

// ReadinessKey pairs a descriptor with the interests that fired for it during
// a single Wait call. Gen identifies the registration the key was produced
// for; a key whose registration has since been removed or replaced is stale.
type ReadinessKey struct {
	FD    int
	Gen   uint32
	Ready Interest
}

// Acceptable reports whether the listening descriptor has a pending connection.
func (k ReadinessKey) Acceptable() bool { return k.Ready&InterestAccept != 0 }

// Readable reports whether the descriptor has data, EOF or an error pending.
func (k ReadinessKey) Readable() bool { return k.Ready&(InterestRead|InterestError) != 0 }

// Writable reports whether the descriptor accepts more outbound bytes.
func (k ReadinessKey) Writable() bool { return k.Ready&InterestWrite != 0 }

// Multiplexer wraps one OS-level readiness selection object.
//
// Registration calls are made from the loop goroutine in steady state;
// Wakeup and SetWriteInterest may be called from any goroutine.
type Multiplexer interface {
	// RegisterAccept watches a listening descriptor for pending connections.
	RegisterAccept(fd int) error

	// RegisterRead watches a connected descriptor for inbound data.
	RegisterRead(fd int) error

	// SetWriteInterest toggles outbound readiness for a registered descriptor.
	SetWriteInterest(fd int, enabled bool) error

	// Deregister stops watching fd. Keys already produced for it become stale.
	Deregister(fd int) error

	// Wait blocks until at least one key is ready or Wakeup is called and
	// writes ready keys into keys. It may return 0 keys.
	Wait(keys []ReadinessKey) (int, error)

	// Valid reports whether key still refers to a live registration.
	Valid(key ReadinessKey) bool

	// Wakeup forces a blocked Wait to return.
	Wakeup() error

	// Close releases the selection object.
	Close() error
}
