package reconnws

import (
	"time"

	"github.com/reconnws/reconnws/pkg/transport"
)

// EventType identifies what an Event reports.
type EventType string

const (
	// EventConnecting fires on entering StateConnecting.
	EventConnecting EventType = "connecting"
	// EventOpen fires on entering StateOpen.
	EventOpen EventType = "open"
	// EventMessage fires for any inbound payload while open.
	EventMessage EventType = "message"
	// EventError fires for transport-level error signals and rejected sends.
	// It is purely informational and never itself a state transition.
	EventError EventType = "error"
	// EventClose fires on entering terminal StateClosed, and once per interim
	// loss when an open connection drops and retrying begins.
	EventClose EventType = "close"
)

// CloseReason classifies an EventClose.
type CloseReason string

const (
	// CloseReasonForced: the caller requested the shutdown.
	CloseReasonForced CloseReason = "forced"
	// CloseReasonLoss: an established connection terminated unexpectedly and
	// the manager is retrying. This is an interim event, not a terminal one.
	CloseReasonLoss CloseReason = "loss"
	// CloseReasonExhausted: the retry budget ran out. Terminal.
	CloseReasonExhausted CloseReason = "exhausted"
	// CloseReasonUnreachable: the endpoint was classified unreachable before
	// ever completing a handshake. Terminal.
	CloseReasonUnreachable CloseReason = "unreachable"
)

// Event is what the manager reports to its observer. Beyond Type and
// TimeStamp, fields are copied opportunistically from the underlying
// open/message/error/close signal when present.
type Event struct {
	Type      EventType `json:"type"`
	TimeStamp time.Time `json:"timeStamp"`

	Code     int    `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
	WasClean bool   `json:"wasClean,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Origin   string `json:"origin,omitempty"`

	// IsReconnect is set on open events that re-established a lost
	// connection rather than completing a fresh Open().
	IsReconnect bool `json:"isReconnect,omitempty"`

	// CloseReason is set on close events.
	CloseReason CloseReason `json:"closeReason,omitempty"`
}

// Update is a partial report to the observer. Only non-nil fields carry
// meaning; a single Update may carry more than one, for example an interim
// loss close together with the connecting event that follows it.
type Update struct {
	// State carries open and close events, the ones that change what the
	// observer should consider the connection's state.
	State *Event `json:"state,omitempty"`

	// Connecting carries connecting events.
	Connecting *Event `json:"connecting,omitempty"`

	// Message carries inbound payload events.
	Message *Event `json:"message,omitempty"`

	// Error carries transport error signals and send rejections.
	Error *Event `json:"error,omitempty"`
}

// Reporter receives every Update. It is owned by the caller; the manager
// invokes it outside its own lock and never concurrently with itself.
type Reporter func(Update)

func newEvent(t EventType) Event {
	return Event{Type: t, TimeStamp: time.Now()}
}

func closeEvent(info transport.CloseInfo, reason CloseReason) Event {
	ev := newEvent(EventClose)
	ev.Code = info.Code
	ev.Reason = info.Reason
	ev.WasClean = info.WasClean
	ev.CloseReason = reason
	return ev
}
