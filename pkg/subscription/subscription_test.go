package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupRouting(t *testing.T) {
	r := NewRegistry[string]()
	r.Add(7, "wide-1")
	r.Add(7, "wide-2")
	r.AddSubtopic(7, 3, "devinfo")

	tests := []struct {
		name   string
		tid    uint32
		subtid uint32
		want   []string
	}{
		{"subtopic handlers win", 7, 3, []string{"devinfo"}},
		{"unknown subtopic falls back", 7, 4, []string{"wide-1", "wide-2"}},
		{"no subtopic", 7, 0, []string{"wide-1", "wide-2"}},
		{"unknown topic dropped", 8, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Lookup(tt.tid, tt.subtid))
		})
	}
}

func TestLookupSubtopicOnlyTopic(t *testing.T) {
	r := NewRegistry[int]()
	r.AddSubtopic(5, 1, 42)

	assert.Equal(t, []int{42}, r.Lookup(5, 1))
	assert.Nil(t, r.Lookup(5, 2), "no topic-wide handler to fall back to")
	assert.True(t, r.Has(5))
	assert.Equal(t, 1, r.Len())
}

func TestLookupReturnsCopy(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1, 10)

	got := r.Lookup(1, 0)
	got[0] = 99
	assert.Equal(t, []int{10}, r.Lookup(1, 0))
}

func TestRemoveDropsSubtopicHandlers(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1, 1)
	r.AddSubtopic(1, 2, 2)
	r.Add(3, 3)

	assert.True(t, r.Remove(1))
	assert.False(t, r.Remove(1))
	assert.Nil(t, r.Lookup(1, 2))
	assert.False(t, r.Has(1))
	assert.Equal(t, 1, r.Len())

	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestObserversOneShot(t *testing.T) {
	o := NewObservers[string]()
	o.Add(100, "a")
	o.Add(100, "b")
	o.Add(200, "topic")

	assert.Equal(t, []string{"a", "b"}, o.Collect(100, true))
	assert.Nil(t, o.Collect(100, true), "ephemeral observation fires once")

	assert.Equal(t, []string{"topic"}, o.Collect(200, false))
	assert.Equal(t, []string{"topic"}, o.Collect(200, false), "named topic keeps observers")

	assert.True(t, o.Remove(200))
	assert.Equal(t, 0, o.Len())
}
