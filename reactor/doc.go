// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer behind the event loop:
// a level-triggered epoll set plus an eventfd used to wake a blocked Wait.
package reactor
