package gorillaws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconnws/reconnws/pkg/transport"
)

// handlerRecorder funnels the four callbacks into channels the test can wait
// on without polling.
type handlerRecorder struct {
	opened   chan struct{}
	messages chan transport.Message
	errs     chan error
	closed   chan transport.CloseInfo
}

func newHandlerRecorder() *handlerRecorder {
	return &handlerRecorder{
		opened:   make(chan struct{}, 1),
		messages: make(chan transport.Message, 16),
		errs:     make(chan error, 16),
		closed:   make(chan transport.CloseInfo, 1),
	}
}

func (h *handlerRecorder) OnOpen()                          { h.opened <- struct{}{} }
func (h *handlerRecorder) OnMessage(msg transport.Message)  { h.messages <- msg }
func (h *handlerRecorder) OnError(err error)                { h.errs <- err }
func (h *handlerRecorder) OnClose(info transport.CloseInfo) { h.closed <- info }

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialRejectsNonWebSocketEndpoint(t *testing.T) {
	d := &Dialer{}
	_, err := d.Dial("http://example.test", newHandlerRecorder())
	require.Error(t, err)

	_, err = d.Dial("://nope", newHandlerRecorder())
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	srv := echoServer(t)
	rec := newHandlerRecorder()

	d := &Dialer{}
	conn, err := d.Dial(wsURL(srv), rec)
	require.NoError(t, err)

	select {
	case <-rec.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete")
	}

	require.NoError(t, conn.Send([]byte("world")))

	select {
	case msg := <-rec.messages:
		assert.Equal(t, []byte("world"), msg.Data)
		assert.False(t, msg.Binary)
		assert.Equal(t, wsURL(srv), msg.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("echo not received")
	}

	require.NoError(t, conn.Close())

	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close not reported")
	}
}

func TestBinaryFrames(t *testing.T) {
	srv := echoServer(t)
	rec := newHandlerRecorder()

	d := &Dialer{Binary: true}
	conn, err := d.Dial(wsURL(srv), rec)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-rec.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete")
	}

	require.NoError(t, conn.Send([]byte{0x00, 0x01}))

	select {
	case msg := <-rec.messages:
		assert.True(t, msg.Binary, "echo of a binary frame should be binary")
		assert.Equal(t, []byte{0x00, 0x01}, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("echo not received")
	}
}

func TestFailedHandshakeReportsClose(t *testing.T) {
	rec := newHandlerRecorder()

	d := &Dialer{}
	// Reserved port, nothing listens here.
	conn, err := d.Dial("ws://127.0.0.1:1", rec)
	require.NoError(t, err, "Dial itself is non-blocking")

	select {
	case info := <-rec.closed:
		assert.Equal(t, gorilla.CloseAbnormalClosure, info.Code)
		assert.False(t, info.WasClean)
		assert.NotEmpty(t, info.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("failed handshake not reported")
	}

	select {
	case <-rec.opened:
		t.Fatal("OnOpen must not fire for a failed handshake")
	default:
	}

	// Closing after termination is a no-op.
	require.NoError(t, conn.Close())
}

func TestCloseAbortsInFlightHandshake(t *testing.T) {
	// A server that accepts TCP but never answers the upgrade keeps the
	// handshake hanging until canceled.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Second)
	}))
	t.Cleanup(srv.Close)

	rec := newHandlerRecorder()
	d := &Dialer{}
	conn, err := d.Dial(wsURL(srv), rec)
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	select {
	case info := <-rec.closed:
		assert.False(t, info.WasClean)
	case <-time.After(2 * time.Second):
		t.Fatal("aborted handshake not reported")
	}
}

func TestSendBeforeOpen(t *testing.T) {
	srv := echoServer(t)
	rec := newHandlerRecorder()

	d := &Dialer{}
	conn, err := d.Dial(wsURL(srv), rec)
	require.NoError(t, err)
	defer conn.Close()

	// The handshake races this Send; until OnOpen the connection must refuse
	// payloads rather than buffer them.
	if err := conn.Send([]byte("early")); err == nil {
		// The handshake may legitimately have won the race.
		select {
		case <-rec.opened:
		default:
			t.Fatal("Send succeeded before the handshake completed")
		}
	}
}

func TestServerInitiatedClose(t *testing.T) {
	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.WriteControl(
			gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "maintenance"),
			time.Now().Add(time.Second),
		)
		_ = c.Close()
	}))
	t.Cleanup(srv.Close)

	rec := newHandlerRecorder()
	d := &Dialer{}
	_, err := d.Dial(wsURL(srv), rec)
	require.NoError(t, err)

	select {
	case <-rec.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete")
	}

	select {
	case info := <-rec.closed:
		assert.Equal(t, gorilla.CloseGoingAway, info.Code)
		assert.Equal(t, "maintenance", info.Reason)
		assert.True(t, info.WasClean)
	case <-time.After(2 * time.Second):
		t.Fatal("server close not reported")
	}
}
