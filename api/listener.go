// File: api/listener.go
// Package api defines the Listener contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Listener observes connection lifecycle events. All methods are invoked
// synchronously on the event loop thread and must not block; a slow Listener
// stalls every connection. remoteAddress is the peer "ip:port".
//
// Received data aliases the connection's receive buffer and is only valid
// until the callback returns.
type Listener interface {
	Connected(remoteAddress string)
	Disconnected(remoteAddress string)
	Received(data []byte, remoteAddress string)
}
