// Package mock provides a scripted transport for tests: the test drives the
// four handler callbacks deterministically, no network or timers involved.
package mock

import (
	"errors"
	"sync"

	"github.com/reconnws/reconnws/pkg/transport"
)

// Dialer records every Dial and hands out scripted Conns.
type Dialer struct {
	mu sync.Mutex

	// Err, when set, is returned by Dial instead of a Conn.
	Err error

	conns []*Conn
}

var _ transport.Dialer = (*Dialer)(nil)

func (d *Dialer) Dial(endpoint string, h transport.Handler) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	c := &Conn{endpoint: endpoint, handler: h}
	d.conns = append(d.conns, c)
	return c, nil
}

// DialCount returns how many attempts have been dialed.
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Conn returns the i-th dialed connection.
func (d *Dialer) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// Last returns the most recently dialed connection, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Conn is a scripted connection attempt. The test fires Open, Message, Error
// and Drop to simulate the transport; the manager under test calls Send and
// Close.
type Conn struct {
	endpoint string
	handler  transport.Handler

	mu     sync.Mutex
	sent   [][]byte
	closed bool

	// SendErr, when set, is returned by Send.
	SendErr error
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection is not open")
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	return nil
}

// Close marks the connection closed and delivers the final OnClose with a
// normal-closure close info, as a cooperative transport would.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.handler.OnClose(transport.CloseInfo{Code: 1000, WasClean: true})
	return nil
}

// Open simulates a completed handshake.
func (c *Conn) Open() {
	c.handler.OnOpen()
}

// Message simulates an inbound payload.
func (c *Conn) Message(data []byte) {
	c.handler.OnMessage(transport.Message{Data: data, Origin: c.endpoint})
}

// Error simulates a transport-level error signal.
func (c *Conn) Error(err error) {
	c.handler.OnError(err)
}

// Drop simulates an unexpected termination with the given close code. It is
// a no-op on an already-closed connection, matching the exactly-once OnClose
// contract.
func (c *Conn) Drop(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.handler.OnClose(transport.CloseInfo{Code: code, Reason: reason})
}

// Sent returns copies of every payload written so far.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether the manager (or a Drop) closed the connection.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Endpoint returns the endpoint this connection was dialed against.
func (c *Conn) Endpoint() string {
	return c.endpoint
}
