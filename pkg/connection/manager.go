package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smq-protocol/smq-go/pkg/log"
)

// DefaultAttemptTimeout bounds a single reconnect attempt.
const DefaultAttemptTimeout = 30 * time.Second

// Manager errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// State is the manager's view of the connection.
type State uint8

const (
	// StateDisconnected means no connection and no attempt scheduled.
	StateDisconnected State = iota

	// StateConnecting means a Connect call is in progress.
	StateConnecting

	// StateConnected means the last attempt succeeded.
	StateConnected

	// StateReconnecting means attempts are scheduled with backoff.
	StateReconnecting

	// StateClosed means the manager was closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes a connection, typically smq.Client.Connect.
type ConnectFunc func(ctx context.Context) error

// retryable reports whether err permits another attempt.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Manager reconnects a client after connection loss.
type Manager struct {
	mu sync.RWMutex

	state          State
	lastErr        error
	backoff        *Backoff
	connectFn      ConnectFunc
	autoReconnect  bool
	attemptTimeout time.Duration
	protoLog       log.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func(err error)
	onReconnecting func(attempt int, delay time.Duration)
	onGiveUp       func(err error)
}

// NewManager creates a manager around connectFn. Automatic reconnection
// is enabled but only runs after StartReconnectLoop.
func NewManager(connectFn ConnectFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:          StateDisconnected,
		backoff:        NewBackoff(),
		connectFn:      connectFn,
		autoReconnect:  true,
		attemptTimeout: DefaultAttemptTimeout,
		ctx:            ctx,
		cancel:         cancel,
		reconnectCh:    make(chan struct{}, 1),
	}
}

// SetBackoff replaces the backoff parameters. Must be called before
// StartReconnectLoop.
func (m *Manager) SetBackoff(cfg BackoffConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoff = NewBackoffWithConfig(cfg)
}

// SetAttemptTimeout bounds each reconnect attempt.
func (m *Manager) SetAttemptTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.attemptTimeout = d
	}
}

// SetProtocolLogger records state transitions as reconnect events.
func (m *Manager) SetProtocolLogger(logger log.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protoLog = logger
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the last attempt succeeded.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the error of the last failed attempt or loss.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// BackoffAttempts returns the number of reconnect attempts since the
// last success.
func (m *Manager) BackoffAttempts() int {
	m.mu.RLock()
	b := m.backoff
	m.mu.RUnlock()
	return b.Attempts()
}

// Connect makes the first connection synchronously.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	from := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notify(from, StateConnecting, "")

	err := m.connectFn(ctx)

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if err != nil {
		m.lastErr = err
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		m.notify(StateConnecting, StateDisconnected, err.Error())
		return err
	}
	m.lastErr = nil
	m.setStateLocked(StateConnected)
	m.backoff.Reset()
	onConnected := m.onConnected
	m.mu.Unlock()

	m.notify(StateConnecting, StateConnected, "")
	if onConnected != nil {
		onConnected()
	}
	return nil
}

// Disconnect marks a locally initiated disconnect. With auto-reconnect
// enabled the manager starts reconnecting.
func (m *Manager) Disconnect() {
	m.lost(nil)
}

// NotifyConnectionLost reports a connection loss, typically from the
// client's close callback. A non-retryable err ends reconnection.
func (m *Manager) NotifyConnectionLost(err error) {
	m.lost(err)
}

func (m *Manager) lost(err error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.lastErr = err
	retry := m.autoReconnect && (err == nil || retryable(err))
	to := StateDisconnected
	if retry {
		to = StateReconnecting
	}
	from := m.setStateLocked(to)
	onDisconnected := m.onDisconnected
	onGiveUp := m.onGiveUp
	m.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.notify(from, to, reason)
	if onDisconnected != nil {
		onDisconnected(err)
	}
	if retry {
		m.triggerReconnect()
	} else if err != nil && m.autoReconnect && onGiveUp != nil {
		onGiveUp(err)
	}
}

// StartReconnectLoop starts the background reconnection goroutine.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close stops reconnection and waits for the loop to exit. It does not
// close the client.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	from := m.setStateLocked(StateClosed)
	m.mu.Unlock()
	m.notify(from, StateClosed, "")

	m.cancel()
	m.wg.Wait()
}

// setStateLocked changes the state and returns the previous one.
func (m *Manager) setStateLocked(to State) State {
	from := m.state
	m.state = to
	return from
}

// notify reports a transition. It must be called without the lock held.
func (m *Manager) notify(from, to State, reason string) {
	m.mu.RLock()
	onStateChange := m.onStateChange
	protoLog := m.protoLog
	m.mu.RUnlock()

	if protoLog != nil {
		protoLog.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerClient,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityReconnect,
				OldState: from.String(),
				NewState: to.String(),
				Reason:   reason,
			},
		})
	}
	if onStateChange != nil {
		onStateChange(from, to)
	}
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect retries with backoff until connected, closed, or a
// non-retryable error.
func (m *Manager) attemptReconnect() {
	for {
		m.mu.RLock()
		state := m.state
		backoff := m.backoff
		timeout := m.attemptTimeout
		onReconnecting := m.onReconnecting
		m.mu.RUnlock()

		if state != StateReconnecting {
			return
		}

		delay := backoff.Next()
		if onReconnecting != nil {
			onReconnecting(backoff.Attempts(), delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(m.ctx, timeout)
		err := m.connectFn(ctx)
		cancel()

		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		if err == nil {
			m.lastErr = nil
			m.setStateLocked(StateConnected)
			backoff.Reset()
			onConnected := m.onConnected
			m.mu.Unlock()

			m.notify(StateReconnecting, StateConnected, "")
			if onConnected != nil {
				onConnected()
			}
			return
		}

		m.lastErr = err
		if !retryable(err) {
			m.setStateLocked(StateDisconnected)
			onGiveUp := m.onGiveUp
			m.mu.Unlock()

			m.notify(StateReconnecting, StateDisconnected, err.Error())
			if onGiveUp != nil {
				onGiveUp(err)
			}
			return
		}
		m.mu.Unlock()
	}
}

// OnStateChange sets a callback for state transitions.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for every successful connect. Restore
// subscriptions here: the broker forgets them with the connection.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for connection loss. err is nil for
// Disconnect.
func (m *Manager) OnDisconnected(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each delayed attempt.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// OnGiveUp sets a callback for a non-retryable error that ends
// reconnection.
func (m *Manager) OnGiveUp(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGiveUp = fn
}
