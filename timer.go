package reconnws

import (
	"sync"
	"time"
)

// attemptTimer is a one-shot, cancelable timer bound to a single connection
// attempt. The manager holds one for the handshake watchdog and one for the
// scheduled reconnect, so at most one of each can be live at a time: arming
// replaces any previous timer.
//
// Cancellation stops the underlying timer but cannot stop a callback that
// already fired; callbacks must therefore check the attempt epoch themselves
// before acting.
type attemptTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (t *attemptTimer) arm(d time.Duration, callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, callback)
}

func (t *attemptTimer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
