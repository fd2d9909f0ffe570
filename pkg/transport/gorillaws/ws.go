// Package gorillaws implements the transport capability over
// gorilla/websocket.
package gorillaws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/reconnws/reconnws/pkg/transport"
)

// DefaultDialer is the gorilla dialer used when none is configured.
//
// It is the default gorilla dialer as of gorilla/websocket v1.5.0 with
// EnableCompression set to true.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

const closeWriteWait = time.Second

// Dialer opens one gorilla/websocket connection per Dial call. The zero
// value is usable.
type Dialer struct {
	// Dialer overrides DefaultDialer.
	Dialer *gorilla.Dialer

	// RequestHeader is sent with the handshake request.
	RequestHeader http.Header

	// Subprotocols are offered during the handshake.
	Subprotocols []string

	// Binary selects binary frames for outbound payloads instead of text.
	Binary bool
}

var _ transport.Dialer = (*Dialer)(nil)

// Dial starts a connection attempt in the background and returns its handle
// immediately; the handshake outcome arrives through h. The returned error is
// limited to endpoints a WebSocket dial cannot be attempted against.
func (d *Dialer) Dial(endpoint string, h transport.Handler) (transport.Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, errors.New("endpoint scheme must be ws or wss")
	}

	base := d.Dialer
	if base == nil {
		base = DefaultDialer
	}
	dialer := *base
	if len(d.Subprotocols) > 0 {
		dialer.Subprotocols = d.Subprotocols
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		endpoint: endpoint,
		handler:  h,
		binary:   d.Binary,
		cancel:   cancel,
	}
	go c.run(ctx, &dialer, d.RequestHeader)

	return c, nil
}

// Conn is one live gorilla/websocket connection attempt.
type Conn struct {
	endpoint string
	handler  transport.Handler
	binary   bool
	cancel   context.CancelFunc

	// mu guards ws and closed. writeMu serializes frame writes, which
	// gorilla requires.
	mu      sync.Mutex
	writeMu sync.Mutex
	ws      *gorilla.Conn
	closed  bool

	closeOnce sync.Once
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) run(ctx context.Context, dialer *gorilla.Dialer, header http.Header) {
	ws, resp, err := dialer.DialContext(ctx, c.endpoint, header)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.terminate(nil, transport.CloseInfo{
			Code:   gorilla.CloseAbnormalClosure,
			Reason: err.Error(),
		})
		return
	}

	c.mu.Lock()
	if c.closed {
		// Close raced with a successful handshake.
		c.mu.Unlock()
		c.terminate(ws, transport.CloseInfo{
			Code:     gorilla.CloseNormalClosure,
			WasClean: true,
		})
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.handler.OnOpen()
	c.readLoop(ws)
}

func (c *Conn) readLoop(ws *gorilla.Conn) {
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			info := transport.CloseInfo{
				Code:   gorilla.CloseAbnormalClosure,
				Reason: err.Error(),
			}
			var closeErr *gorilla.CloseError
			if errors.As(err, &closeErr) {
				info.Code = closeErr.Code
				info.Reason = closeErr.Text
				info.WasClean = closeErr.Code == gorilla.CloseNormalClosure ||
					closeErr.Code == gorilla.CloseGoingAway
			}
			c.terminate(ws, info)
			return
		}

		c.handler.OnMessage(transport.Message{
			Data:   data,
			Binary: messageType == gorilla.BinaryMessage,
			Origin: c.endpoint,
		})
	}
}

// Send writes one frame. It returns an error if the connection is not open.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	ws := c.ws
	closed := c.closed
	c.mu.Unlock()

	if ws == nil || closed {
		return errors.New("connection is not open")
	}

	messageType := gorilla.TextMessage
	if c.binary {
		messageType = gorilla.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(messageType, data)
}

// Close aborts an in-flight handshake, or closes an established connection
// after attempting a graceful close message. The handler's OnClose still
// fires exactly once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	c.cancel()

	if ws != nil {
		c.writeMu.Lock()
		_ = ws.WriteControl(
			gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
			time.Now().Add(closeWriteWait),
		)
		c.writeMu.Unlock()
		// The read loop notices the closed connection and delivers OnClose.
		return ws.Close()
	}
	return nil
}

// terminate delivers the final OnClose exactly once, whichever path loses
// the connection first.
func (c *Conn) terminate(ws *gorilla.Conn, info transport.CloseInfo) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
		c.handler.OnClose(info)
	})
}
