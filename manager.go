package reconnws

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/reconnws/reconnws/pkg/backoff"
	"github.com/reconnws/reconnws/pkg/logger"
	"github.com/reconnws/reconnws/pkg/transport"
)

// Manager owns a single logical persistent connection: it opens a fresh
// transport per attempt, watches the handshake with a timeout, classifies
// terminations as forced, unexpected, timed out or exhausted, and
// re-establishes lost connections with backed-off retries, reporting every
// lifecycle event through the caller's Reporter.
//
// Transport and timer callbacks arrive on arbitrary goroutines; all
// transitions serialize on one mutex. Each attempt is tagged with an epoch,
// and callbacks belonging to superseded attempts are discarded without
// touching state.
type Manager struct {
	cfg    *Config
	policy *backoff.Policy
	dialer transport.Dialer
	log    logger.Logger

	// reportMu serializes Reporter invocations, which happen outside m.mu.
	reportMu sync.Mutex
	report   Reporter

	mu       sync.Mutex
	endpoint string
	state    State

	// epoch identifies the current attempt. Bumped on every new attempt and
	// on endpoint change; stale callbacks carry an older value.
	epoch uint64

	// conn is the live transport, nil between attempts.
	conn transport.Conn

	// attempts counts consecutive failed attempts. Reset on successful open
	// and on a fresh Open().
	attempts int

	// everConnected is monotonic for the current endpoint: set on the first
	// successful handshake, reset only by SetEndpoint.
	everConnected bool

	// reconnecting marks the in-flight attempt as scheduled by the retry
	// path rather than a fresh Open().
	reconnecting bool

	// forcedClose marks that the caller requested shutdown, so the next
	// termination is terminal.
	forcedClose bool

	// timedOut marks that the current attempt was aborted by the handshake
	// watchdog rather than by the remote peer.
	timedOut bool

	// unreachable counts consecutive never-connected failures whose close
	// code matches the configured unreachable set.
	unreachable int

	handshakeTimer attemptTimer
	reconnectTimer attemptTimer
}

// New creates a Manager for the given ws:// or wss:// endpoint. Every
// lifecycle event is delivered to report, which may be nil. Unless
// WithAutomaticOpen(false) is given, the first connection attempt starts
// before New returns.
func New(endpoint string, report Reporter, opts ...Option) (*Manager, error) {
	if _, err := parseEndpoint(endpoint); err != nil {
		return nil, err
	}
	if report == nil {
		report = func(Update) {}
	}

	cfg := NewConfig(opts...)
	m := &Manager{
		cfg:      cfg,
		policy:   cfg.policy(),
		dialer:   cfg.dialer(),
		report:   report,
		log:      cfg.logger(),
		endpoint: endpoint,
		state:    StateClosed,
	}

	if cfg.AutomaticOpen {
		if err := m.Open(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	return u, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint returns the current target endpoint.
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// Open starts a fresh connection cycle. It is idempotent: while the manager
// is already connecting or open to the same endpoint it is a no-op.
func (m *Manager) Open() error {
	m.mu.Lock()
	if m.state != StateClosed {
		m.mu.Unlock()
		return nil
	}

	m.forcedClose = false
	m.attempts = 0
	m.unreachable = 0
	up := m.startAttempt(false)
	m.mu.Unlock()

	m.deliver(up)
	return nil
}

// Close forces the connection shut: both timers are canceled, the live
// transport (if any) is closed, and the resulting termination is terminal.
// The manager stays closed until Open is called again.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}

	m.forcedClose = true
	m.handshakeTimer.cancel()
	m.reconnectTimer.cancel()

	conn := m.conn
	if conn == nil {
		// Between attempts; there is no transport to report the termination,
		// so synthesize it.
		m.mustTransitionTo(StateClosed)
		ev := newEvent(EventClose)
		ev.CloseReason = CloseReasonForced
		ev.WasClean = true
		m.mu.Unlock()

		m.deliver(Update{State: &ev})
		return nil
	}
	m.mu.Unlock()

	return conn.Close()
}

// Send forwards a payload to the live transport. While open it returns the
// transport's result. While connecting the call is rejected with
// ErrConnecting; there is no buffering. While closed it reports the failure,
// and, if the endpoint has connected before, additionally triggers a single
// fresh Open as recovery; an endpoint that never connected gets the report
// only, so a persistently unreachable peer is not masked by silent retries.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		conn := m.conn
		m.mu.Unlock()
		return conn.Send(payload)

	case StateConnecting:
		m.mu.Unlock()
		ev := newEvent(EventError)
		ev.Reason = "cannot send: " + ErrConnecting.Error()
		m.deliver(Update{Error: &ev})
		return ErrConnecting

	default:
		ever := m.everConnected
		m.mu.Unlock()

		err := ErrNotOpen
		if !ever {
			err = ErrNeverConnected
		}
		ev := newEvent(EventError)
		ev.Reason = "cannot send: " + err.Error()
		m.deliver(Update{Error: &ev})

		if ever {
			_ = m.Open()
		}
		return err
	}
}

// SetEndpoint retargets the manager. Setting the current endpoint while
// connecting or open is a no-op. Otherwise any live attempt is force-closed,
// per-endpoint attempt bookkeeping is reset, and, when AutomaticOpen is set
// or the manager was live, a fresh cycle against the new endpoint begins.
// The whole sequence is atomic from the state machine's point of view.
func (m *Manager) SetEndpoint(endpoint string) error {
	if _, err := parseEndpoint(endpoint); err != nil {
		return err
	}

	m.mu.Lock()
	if endpoint == m.endpoint && m.state != StateClosed {
		m.mu.Unlock()
		return nil
	}

	wasLive := m.state != StateClosed
	old := m.conn
	m.conn = nil
	m.handshakeTimer.cancel()
	m.reconnectTimer.cancel()
	// Strand any callbacks still in flight from the old endpoint's attempt.
	m.epoch++

	var updates []Update
	if wasLive {
		m.mustTransitionTo(StateClosed)
		ev := newEvent(EventClose)
		ev.CloseReason = CloseReasonForced
		ev.WasClean = true
		updates = append(updates, Update{State: &ev})
	}

	m.endpoint = endpoint
	m.attempts = 0
	m.everConnected = false
	m.reconnecting = false
	m.forcedClose = false
	m.timedOut = false
	m.unreachable = 0
	m.log.Debug("endpoint changed", "endpoint", endpoint)

	if wasLive || m.cfg.AutomaticOpen {
		updates = append(updates, m.startAttempt(false))
	}
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	for _, up := range updates {
		m.deliver(up)
	}
	return nil
}

// startAttempt opens a transport for a new attempt and arms the handshake
// watchdog. Caller holds m.mu. The returned Update must be delivered after
// unlocking.
func (m *Manager) startAttempt(reconnect bool) Update {
	m.epoch++
	epoch := m.epoch
	m.reconnecting = reconnect
	m.timedOut = false
	m.mustTransitionTo(StateConnecting)

	conn, err := m.dialer.Dial(m.endpoint, &attemptHandler{m: m, epoch: epoch})
	if err != nil {
		// The dialer could not even begin the attempt. Route it through the
		// normal termination path so classification and retry apply.
		m.conn = nil
		m.log.Error("dial rejected", "endpoint", m.endpoint, "error", err)
		go func() {
			m.connClosed(epoch, transport.CloseInfo{Reason: err.Error()})
		}()
	} else {
		m.conn = conn
		m.handshakeTimer.arm(m.cfg.TimeoutInterval, func() {
			m.handshakeTimeout(epoch)
		})
	}

	m.log.Debug("connection attempt started",
		"endpoint", m.endpoint,
		"reconnect", reconnect,
		"attempts", m.attempts,
	)

	ev := newEvent(EventConnecting)
	ev.Origin = m.endpoint
	return Update{Connecting: &ev}
}

// attemptHandler forwards transport callbacks for one attempt, tagged with
// the attempt's epoch so the manager can reject stale ones.
type attemptHandler struct {
	m     *Manager
	epoch uint64
}

func (h *attemptHandler) OnOpen()                          { h.m.connOpened(h.epoch) }
func (h *attemptHandler) OnMessage(msg transport.Message)  { h.m.connMessage(h.epoch, msg) }
func (h *attemptHandler) OnError(err error)                { h.m.connError(h.epoch, err) }
func (h *attemptHandler) OnClose(info transport.CloseInfo) { h.m.connClosed(h.epoch, info) }

func (m *Manager) connOpened(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	m.handshakeTimer.cancel()
	wasReconnect := m.reconnecting
	m.attempts = 0
	m.everConnected = true
	m.unreachable = 0
	m.reconnecting = false
	m.mustTransitionTo(StateOpen)

	ev := newEvent(EventOpen)
	ev.Origin = m.endpoint
	ev.IsReconnect = wasReconnect
	m.mu.Unlock()

	m.deliver(Update{State: &ev})
}

func (m *Manager) connMessage(epoch uint64, msg transport.Message) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ev := newEvent(EventMessage)
	ev.Data = msg.Data
	ev.Origin = msg.Origin
	m.deliver(Update{Message: &ev})
}

func (m *Manager) connError(epoch uint64, err error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ev := newEvent(EventError)
	ev.Reason = err.Error()
	ev.Origin = m.endpoint
	m.deliver(Update{Error: &ev})
}

// connClosed is the single termination path: every close, whether forced,
// remote, timed out or a failed dial, lands here and is classified.
func (m *Manager) connClosed(epoch uint64, info transport.CloseInfo) {
	m.mu.Lock()
	// The state check covers a termination racing a synthesized forced close:
	// once terminal, there is nothing left to classify.
	if epoch != m.epoch || m.state == StateClosed {
		m.mu.Unlock()
		return
	}

	m.conn = nil
	m.handshakeTimer.cancel()

	if m.forcedClose {
		m.reconnectTimer.cancel()
		m.mustTransitionTo(StateClosed)
		ev := closeEvent(info, CloseReasonForced)
		m.log.Debug("closed by request", "endpoint", m.endpoint)
		m.mu.Unlock()

		m.deliver(Update{State: &ev})
		return
	}

	failed := m.attempts + 1

	if m.policy.Exhausted(failed) {
		m.mustTransitionTo(StateClosed)
		ev := closeEvent(info, CloseReasonExhausted)
		m.log.Warn("retry budget exhausted",
			"endpoint", m.endpoint,
			"attempts", failed,
		)
		m.mu.Unlock()

		m.deliver(Update{State: &ev})
		return
	}

	if !m.everConnected && m.cfg.unreachableCode(info.Code) {
		// Only consecutive matching failures count.
		m.unreachable++
		if m.unreachable >= m.cfg.MaxUnreachableFailures {
			m.mustTransitionTo(StateClosed)
			ev := closeEvent(info, CloseReasonUnreachable)
			m.log.Warn("endpoint classified unreachable",
				"endpoint", m.endpoint,
				"code", info.Code,
				"failures", m.unreachable,
			)
			m.mu.Unlock()

			m.deliver(Update{State: &ev})
			return
		}
	} else {
		m.unreachable = 0
	}

	delay := m.policy.Delay(m.attempts, m.everConnected)
	m.attempts = failed

	// A first loss of an established connection gets its own close event so
	// the observer can distinguish it from "still retrying". Attempts that
	// were themselves retries, or were cut short by the handshake watchdog,
	// do not repeat it.
	firstLoss := !m.reconnecting && !m.timedOut
	m.timedOut = false

	if m.state != StateConnecting {
		m.mustTransitionTo(StateConnecting)
	}

	m.log.Debug("connection lost, retry scheduled",
		"endpoint", m.endpoint,
		"code", info.Code,
		"delay", delay,
		"attempts", m.attempts,
	)

	retryEpoch := m.epoch
	m.reconnectTimer.arm(delay, func() {
		m.retry(retryEpoch)
	})

	var up Update
	if firstLoss {
		ev := closeEvent(info, CloseReasonLoss)
		up.State = &ev
	}
	cev := newEvent(EventConnecting)
	cev.Origin = m.endpoint
	up.Connecting = &cev
	m.mu.Unlock()

	m.deliver(up)
}

// retry is the reconnect timer callback.
func (m *Manager) retry(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.forcedClose || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	up := m.startAttempt(true)
	m.mu.Unlock()

	m.deliver(up)
}

// handshakeTimeout is the TimeoutGuard callback: it abandons an attempt that
// has not completed its handshake in time by forcing the transport closed.
// The termination then re-enters connClosed through the normal close
// callback; the guard emits no event of its own.
func (m *Manager) handshakeTimeout(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StateConnecting || m.conn == nil {
		m.mu.Unlock()
		return
	}

	m.timedOut = true
	conn := m.conn
	m.log.Debug("handshake deadline exceeded, abandoning attempt", "endpoint", m.endpoint)
	m.mu.Unlock()

	_ = conn.Close()
}

func (m *Manager) transitionTo(newState State) error {
	if err := m.state.validateTransitionTo(newState); err != nil {
		return err
	}
	m.state = newState
	m.log.Debug("state transitioned", "new_state", newState)
	return nil
}

// mustTransitionTo is for transitions that can only fail through programmer
// error. Caller holds m.mu.
func (m *Manager) mustTransitionTo(newState State) {
	if err := m.transitionTo(newState); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
}

func (m *Manager) deliver(up Update) {
	if up.State == nil && up.Connecting == nil && up.Message == nil && up.Error == nil {
		return
	}
	m.reportMu.Lock()
	defer m.reportMu.Unlock()
	m.report(up)
}
