// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform loop thread preparation.

package concurrency

import (
	"errors"
	"fmt"
	"runtime"
)

// ThreadOptions are best-effort scheduling hints for the loop thread.
type ThreadOptions struct {
	// CPU pins the thread to one logical CPU; negative disables pinning.
	CPU int
	// Nice is how many nice levels to raise priority by; 0 leaves it unchanged.
	Nice int
}

// PrepareLoopThread locks the calling goroutine to its OS thread and applies
// opts. The thread stays locked even when hints fail; the returned error
// lists the hints that could not be applied and is not fatal.
//
// The goroutine must exit while still locked so the runtime discards the
// modified thread instead of returning it to the scheduler.
func PrepareLoopThread(opts ThreadOptions) (tid int, err error) {
	runtime.LockOSThread()
	tid = ThreadID()

	var errs []error
	if opts.Nice > 0 {
		if e := platformRaisePriority(opts.Nice); e != nil {
			errs = append(errs, fmt.Errorf("raise priority by %d: %w", opts.Nice, e))
		}
	}
	if opts.CPU >= 0 {
		if opts.CPU >= NumCPUs() {
			errs = append(errs, fmt.Errorf("pin cpu %d: only %d cpus", opts.CPU, NumCPUs()))
		} else if e := platformPinCurrentThread(opts.CPU); e != nil {
			errs = append(errs, fmt.Errorf("pin cpu %d: %w", opts.CPU, e))
		}
	}
	return tid, errors.Join(errs...)
}

// ThreadID returns the kernel id of the calling thread, or -1 when unknown.
func ThreadID() int {
	return platformThreadID()
}

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}
