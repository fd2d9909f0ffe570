// Package transport defines the socket capability consumed by the connection
// manager: a dialer that opens one connection per attempt, and the four event
// callbacks the connection reports through.
//
// The manager never reuses a Conn across attempts. Every attempt gets a fresh
// Conn from the Dialer, paired with a fresh Handler that the manager tags with
// the attempt it belongs to, so callbacks from superseded attempts can be
// discarded.
package transport

// Message is an inbound payload delivered while the connection is open.
type Message struct {
	// Data is the raw payload. The transport does not interpret it.
	Data []byte

	// Binary reports whether the payload arrived in a binary frame.
	Binary bool

	// Origin is the endpoint the message was received from.
	Origin string
}

// CloseInfo describes a connection termination as reported by the transport.
//
// The fields mirror the close signal of the underlying protocol where
// available; a transport that cannot determine them reports the zero value
// with Code set to its protocol's abnormal-closure code.
type CloseInfo struct {
	Code     int
	Reason   string
	WasClean bool
}

// Handler receives the event callbacks for a single connection attempt.
//
// A transport must deliver OnClose exactly once per Conn, as the last
// callback, regardless of whether the connection ever opened. OnOpen is
// delivered at most once, before any OnMessage. OnError is informational and
// may fire at any point; it does not imply termination.
type Handler interface {
	OnOpen()
	OnMessage(msg Message)
	OnError(err error)
	OnClose(info CloseInfo)
}

// Conn is one live connection attempt.
type Conn interface {
	// Send transmits a payload. It returns an error if the connection is not
	// open; it never buffers.
	Send(data []byte) error

	// Close tears the connection down. The handler still receives its final
	// OnClose callback. Closing an already-closed Conn is a no-op.
	Close() error
}

// Dialer opens a new Conn per call.
//
// Dial must not invoke the handler before returning; connecting proceeds in
// the background and the outcome arrives through h. An error return is
// reserved for inputs the dialer cannot even begin an attempt with.
type Dialer interface {
	Dial(endpoint string, h Handler) (Conn, error)
}
