//go:build !linux
// +build !linux

// hioload-tcp/internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
//
// No-op thread placement for platforms without an epoll reactor.

package concurrency

func platformThreadID() int { return -1 }

func platformRaisePriority(by int) error { return nil }

func platformPinCurrentThread(cpu int) error { return nil }
