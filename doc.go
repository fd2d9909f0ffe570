// Package reconnws manages the liveness of a single logical persistent
// WebSocket-style connection: it detects unexpected termination and
// re-establishes the connection with bounded, backed-off retries, while
// exposing a stable event surface to the caller.
//
// The caller supplies an endpoint and a Reporter; the Manager drives the
// underlying transport (by default gorilla/websocket via
// pkg/transport/gorillaws) and reports connecting, open, message, error and
// close events as partial Updates:
//
//	m, err := reconnws.New("ws://localhost:8000/ws", func(up reconnws.Update) {
//	    switch {
//	    case up.Message != nil:
//	        handle(up.Message.Data)
//	    case up.State != nil && up.State.Type == reconnws.EventClose:
//	        // branch on up.State.CloseReason: loss closes are interim and
//	        // retried; forced, exhausted and unreachable closes are terminal.
//	    }
//	})
//	if err != nil {
//	    // invalid endpoint
//	}
//	_ = m.Send([]byte("hello"))
//	_ = m.Close()
//
// The package manages connection liveness only. Message framing,
// application-level protocol semantics and authentication are the caller's
// concern; payloads pass through as opaque bytes.
package reconnws
