// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-tcp.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotSupported     = errors.New("operation not supported")
	ErrInvalidState     = errors.New("invalid state")
	ErrEndpointBind     = errors.New("endpoint bind failed")
	ErrWriteFailure     = errors.New("write failed")
	ErrNoConnection     = errors.New("no active connection")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrNotFound         = errors.New("resource not found")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAddressInUse
	ErrCodePermission
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeNotFound
	ErrCodeClosed
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeAddressInUse:
		return "address_in_use"
	case ErrCodePermission:
		return "permission"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeClosed:
		return "closed"
	default:
		return "internal"
	}
}

// MarshalText encodes the code by name in JSON bodies.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error represents a structured error with code and context. It is the body
// of admin API error responses.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// EndpointBindError is returned by Bind when the listening endpoint could not
// be opened, bound or registered. It is fatal to that Bind call only.
type EndpointBindError struct {
	Port int
	Op   string // socket, bind, listen, register, ...
	Code ErrorCode
	Err  error
}

func (e *EndpointBindError) Error() string {
	return fmt.Sprintf("bind port %d: %s: %v", e.Port, e.Op, e.Err)
}

func (e *EndpointBindError) Unwrap() error { return e.Err }

// Is reports ErrEndpointBind as a match so callers can test the category.
func (e *EndpointBindError) Is(target error) bool { return target == ErrEndpointBind }

// WriteError reports a failed Send. It never affects the event loop.
type WriteError struct {
	ConnID uint64
	Addr   string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("send: %v", e.Err)
	}
	return fmt.Sprintf("send to %s: %v", e.Addr, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailure }
