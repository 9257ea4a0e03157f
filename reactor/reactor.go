// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral constructor defaults for the readiness multiplexer.

package reactor

// DefaultMaxEvents bounds how many ready keys one Wait call can report.
const DefaultMaxEvents = 128

func normalizeMaxEvents(n int) int {
	if n <= 0 {
		return DefaultMaxEvents
	}
	return n
}
