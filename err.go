package reconnws

import "errors"

var (
	// ErrInvalidEndpoint is returned for endpoints that do not parse as a
	// ws:// or wss:// URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrNotOpen is returned by Send while the connection is closed.
	ErrNotOpen = errors.New("connection is not open")

	// ErrConnecting is returned by Send while a connection attempt is in
	// flight. The manager does not buffer; backpressure is the caller's
	// responsibility.
	ErrConnecting = errors.New("connection attempt in progress")

	// ErrNeverConnected is returned by Send when the connection is closed and
	// the endpoint has never completed a handshake, in which case no recovery
	// attempt is triggered either.
	ErrNeverConnected = errors.New("endpoint never connected")

	// ErrClosed is returned by Close when there is nothing left to close.
	ErrClosed = errors.New("already closed")
)
