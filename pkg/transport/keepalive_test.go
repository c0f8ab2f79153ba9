package transport

import (
	"testing"
	"time"
)

func TestKeepAliveDefaults(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{}, time.Now())
	cfg := ka.Config()

	if cfg.PingInterval != 20*time.Minute {
		t.Errorf("PingInterval: got %v", cfg.PingInterval)
	}
	if cfg.PongTimeout != 20*time.Second {
		t.Errorf("PongTimeout: got %v", cfg.PongTimeout)
	}
	if cfg.CheckInterval != DefaultCheckInterval {
		t.Errorf("CheckInterval: got %v", cfg.CheckInterval)
	}
}

func TestKeepAlivePingThenTimeout(t *testing.T) {
	start := time.Unix(1000, 0)
	ka := NewKeepAlive(DefaultKeepAliveConfig(), start)

	if a := ka.Check(start.Add(19 * time.Minute)); a != ActionNone {
		t.Errorf("before idle threshold: got %s", a)
	}

	pingAt := start.Add(20 * time.Minute)
	if a := ka.Check(pingAt); a != ActionPing {
		t.Fatalf("at idle threshold: got %s, want PING", a)
	}
	// A ping is outstanding; do not send another.
	if a := ka.Check(pingAt.Add(10 * time.Second)); a != ActionNone {
		t.Errorf("while waiting for pong: got %s", a)
	}
	if a := ka.Check(pingAt.Add(20 * time.Second)); a != ActionTimeout {
		t.Errorf("after pong timeout: got %s, want TIMEOUT", a)
	}

	stats := ka.Stats()
	if stats.PingsSent != 1 || !stats.PingOutstanding {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestKeepAliveFrameClearsPing(t *testing.T) {
	start := time.Unix(1000, 0)
	ka := NewKeepAlive(DefaultKeepAliveConfig(), start)

	pingAt := start.Add(21 * time.Minute)
	if a := ka.Check(pingAt); a != ActionPing {
		t.Fatalf("got %s, want PING", a)
	}
	ka.FrameReceived(pingAt.Add(time.Second))

	if a := ka.Check(pingAt.Add(30 * time.Second)); a != ActionNone {
		t.Errorf("after pong: got %s", a)
	}
	if ka.Stats().PingOutstanding {
		t.Error("ping should no longer be outstanding")
	}
}

func TestKeepAliveNextCheck(t *testing.T) {
	start := time.Unix(1000, 0)
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:  time.Minute,
		PongTimeout:   5 * time.Second,
		CheckInterval: 10 * time.Second,
	}, start)

	if d := ka.NextCheck(start); d != 10*time.Second {
		t.Errorf("bounded by CheckInterval: got %v", d)
	}
	if d := ka.NextCheck(start.Add(55 * time.Second)); d != 5*time.Second {
		t.Errorf("until ping deadline: got %v", d)
	}
	if d := ka.NextCheck(start.Add(2 * time.Minute)); d != 0 {
		t.Errorf("overdue: got %v", d)
	}

	ka.Check(start.Add(time.Minute))
	if d := ka.NextCheck(start.Add(time.Minute + time.Second)); d != 4*time.Second {
		t.Errorf("until pong deadline: got %v", d)
	}
}

func TestKeepAliveReset(t *testing.T) {
	start := time.Unix(1000, 0)
	ka := NewKeepAlive(DefaultKeepAliveConfig(), start)
	ka.Check(start.Add(time.Hour))

	later := start.Add(2 * time.Hour)
	ka.Reset(later)
	if a := ka.Check(later.Add(time.Minute)); a != ActionNone {
		t.Errorf("after reset: got %s", a)
	}
}

func TestKeepAliveDetectionDelay(t *testing.T) {
	cfg := DefaultKeepAliveConfig()
	want := 20*time.Minute + 20*time.Second + 20*time.Second
	if got := cfg.DetectionDelay(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
