package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDefaultSequence(t *testing.T) {
	b := NewBackoff()

	want := append(BackoffSequence(), MaxBackoff)
	for i, exp := range want {
		assert.Equal(t, exp, b.Current(), "attempt %d", i)
		b.Next()
	}
	assert.Equal(t, len(want), b.Attempts())
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff()

	samples := make(map[time.Duration]struct{})
	for range 20 {
		d := b.Peek()
		assert.GreaterOrEqual(t, d, InitialBackoff)
		assert.LessOrEqual(t, d, InitialBackoff+InitialBackoff/4)
		samples[d] = struct{}{}
	}
	assert.Greater(t, len(samples), 1, "jitter should vary")
	assert.Zero(t, b.Attempts(), "Peek must not advance")
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff()
	for range 5 {
		b.Next()
	}
	assert.Greater(t, b.Current(), InitialBackoff)

	b.Reset()
	assert.Equal(t, InitialBackoff, b.Current())
	assert.Zero(t, b.Attempts())
}

func TestBackoffCustomConfig(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        500 * time.Millisecond,
		Multiplier: 2,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, exp := range want {
		assert.Equal(t, exp, b.Next(), "attempt %d", i)
	}
}

func TestBackoffSequence(t *testing.T) {
	seq := BackoffSequence()

	assert.Len(t, seq, 7)
	assert.Equal(t, time.Second, seq[0])
	assert.Equal(t, 32*time.Second, seq[5])
	assert.Equal(t, MaxBackoff, seq[len(seq)-1])
}
