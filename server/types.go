package server

import (
	"fmt"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/pool"
	"github.com/momentics/hioload-tcp/reactor"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Host       string // bind address, "" for the dual-stack wildcard
	BufferSize int    // receive buffer capacity per connection, fixed at construction
	MaxEvents  int    // ready keys reported per multiplexer wait
	LoopCPU    int    // pin the loop thread to this CPU (-1 = no pinning)
	LoopNice   int    // nice levels to raise the loop thread by (0 = unchanged)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:       "",
		BufferSize: pool.DefaultBufferSize,
		MaxEvents:  reactor.DefaultMaxEvents,
		LoopCPU:    -1,
		LoopNice:   5,
	}
}

func (c *Config) validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size %d: %w", c.BufferSize, api.ErrInvalidArgument)
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = reactor.DefaultMaxEvents
	}
	if c.LoopNice < 0 {
		return fmt.Errorf("loop nice %d: %w", c.LoopNice, api.ErrInvalidArgument)
	}
	return nil
}
