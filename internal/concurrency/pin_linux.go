//go:build linux
// +build linux

// hioload-tcp/internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific thread priority and CPU affinity via sched_setaffinity and
// setpriority on the calling thread id.

package concurrency

import "golang.org/x/sys/unix"

func platformThreadID() int {
	return unix.Gettid()
}

// platformRaisePriority lowers the nice value of the calling thread. Linux
// applies PRIO_PROCESS with a thread id to that thread only. Going below the
// current nice value needs CAP_SYS_NICE.
func platformRaisePriority(by int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), -by)
}

func platformPinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
