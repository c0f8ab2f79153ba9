package transport

import (
	"sync"
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is how long the link may stay idle before a ping.
	DefaultPingInterval = 20 * time.Minute

	// DefaultPongTimeout is how long to wait for any frame after a ping.
	DefaultPongTimeout = 20 * time.Second

	// DefaultCheckInterval bounds how long the sender sleeps between checks.
	DefaultCheckInterval = 10 * time.Second
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the idle period after which a ping is sent.
	PingInterval time.Duration

	// PongTimeout is the timeout waiting for a response to the ping.
	PongTimeout time.Duration

	// CheckInterval is the upper bound between two liveness checks.
	CheckInterval time.Duration
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:  DefaultPingInterval,
		PongTimeout:   DefaultPongTimeout,
		CheckInterval: DefaultCheckInterval,
	}
}

// withDefaults fills zero fields.
func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// DetectionDelay is the worst-case time from the last inbound frame until
// a dead link is reported.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	c = c.withDefaults()
	return c.PingInterval + c.PongTimeout + 2*c.CheckInterval
}

// KeepAliveAction tells the sender what to do after a check.
type KeepAliveAction int

const (
	// ActionNone means the link is healthy or a ping is still in flight.
	ActionNone KeepAliveAction = iota

	// ActionPing means a PING frame must be sent.
	ActionPing

	// ActionTimeout means the outstanding ping was not answered in time.
	ActionTimeout
)

// String returns the action name.
func (a KeepAliveAction) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionPing:
		return "PING"
	case ActionTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// KeepAlive tracks link idleness. It owns no goroutine: the sender calls
// Check on every wake-up and the receiver calls FrameReceived for every
// inbound frame. Any inbound frame counts as proof of life, not just PONG.
type KeepAlive struct {
	config KeepAliveConfig

	mu              sync.Mutex
	lastReceived    time.Time
	pingSentAt      time.Time
	pingOutstanding bool
	pingsSent       uint64
}

// NewKeepAlive creates a keep-alive tracker whose idle clock starts at now.
func NewKeepAlive(config KeepAliveConfig, now time.Time) *KeepAlive {
	return &KeepAlive{
		config:       config.withDefaults(),
		lastReceived: now,
	}
}

// Config returns the effective configuration.
func (ka *KeepAlive) Config() KeepAliveConfig {
	return ka.config
}

// FrameReceived records inbound traffic and clears an outstanding ping.
func (ka *KeepAlive) FrameReceived(now time.Time) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastReceived = now
	ka.pingOutstanding = false
}

// Reset restarts the idle clock, e.g. for a new connection.
func (ka *KeepAlive) Reset(now time.Time) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastReceived = now
	ka.pingOutstanding = false
	ka.pingSentAt = time.Time{}
}

// Check evaluates the link state at now. ActionPing marks a ping as
// outstanding, so the caller must send exactly one PING for it.
func (ka *KeepAlive) Check(now time.Time) KeepAliveAction {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if ka.pingOutstanding {
		if now.Sub(ka.pingSentAt) >= ka.config.PongTimeout {
			return ActionTimeout
		}
		return ActionNone
	}
	if now.Sub(ka.lastReceived) >= ka.config.PingInterval {
		ka.pingOutstanding = true
		ka.pingSentAt = now
		ka.pingsSent++
		return ActionPing
	}
	return ActionNone
}

// NextCheck returns how long the caller may sleep before the next Check,
// never more than CheckInterval.
func (ka *KeepAlive) NextCheck(now time.Time) time.Duration {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	var deadline time.Time
	if ka.pingOutstanding {
		deadline = ka.pingSentAt.Add(ka.config.PongTimeout)
	} else {
		deadline = ka.lastReceived.Add(ka.config.PingInterval)
	}

	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	if d > ka.config.CheckInterval {
		d = ka.config.CheckInterval
	}
	return d
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastFrameReceived: ka.lastReceived,
		LastPingSent:      ka.pingSentAt,
		PingOutstanding:   ka.pingOutstanding,
		PingsSent:         ka.pingsSent,
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastFrameReceived time.Time
	LastPingSent      time.Time
	PingOutstanding   bool
	PingsSent         uint64
}
