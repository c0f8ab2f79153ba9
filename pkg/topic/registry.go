package topic

import (
	"errors"
	"fmt"
)

// SelfName is the reserved topic name for the client's own ephemeral ID.
const SelfName = "self"

// ErrIDMismatch indicates the broker acknowledged a name with an ID that
// contradicts an earlier acknowledgment on the same connection.
var ErrIDMismatch = errors.New("name already mapped to a different ID")

// table is a bijection between names and IDs.
type table struct {
	byName map[string]uint32
	byID   map[uint32]string
}

func newTable() table {
	return table{
		byName: make(map[string]uint32),
		byID:   make(map[uint32]string),
	}
}

func (t table) record(kind, name string, id uint32) error {
	if cur, ok := t.byName[name]; ok {
		if cur != id {
			return fmt.Errorf("%w: %s %q is %d, got %d", ErrIDMismatch, kind, name, cur, id)
		}
		return nil
	}
	if other, ok := t.byID[id]; ok {
		return fmt.Errorf("%w: %s id %d is %q, got %q", ErrIDMismatch, kind, id, other, name)
	}
	t.byName[name] = id
	t.byID[id] = name
	return nil
}

// Registry caches topic and subtopic IDs for one connection.
type Registry struct {
	topics    table
	subtopics table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{topics: newTable(), subtopics: newTable()}
}

// Resolve returns the ID of a topic name.
func (r *Registry) Resolve(name string) (uint32, bool) {
	id, ok := r.topics.byName[name]
	return id, ok
}

// ResolveSubtopic returns the ID of a subtopic name.
func (r *Registry) ResolveSubtopic(name string) (uint32, bool) {
	id, ok := r.subtopics.byName[name]
	return id, ok
}

// NameOf returns the topic name of an ID. Ephemeral IDs of other
// clients have no name.
func (r *Registry) NameOf(id uint32) (string, bool) {
	name, ok := r.topics.byID[id]
	return name, ok
}

// SubtopicNameOf returns the subtopic name of an ID.
func (r *Registry) SubtopicNameOf(id uint32) (string, bool) {
	name, ok := r.subtopics.byID[id]
	return name, ok
}

// Record stores an acknowledged topic mapping. Recording the same pair
// again is a no-op; a conflicting pair returns ErrIDMismatch and leaves
// the registry unchanged.
func (r *Registry) Record(name string, id uint32) error {
	return r.topics.record("topic", name, id)
}

// RecordSubtopic stores an acknowledged subtopic mapping.
func (r *Registry) RecordSubtopic(name string, id uint32) error {
	return r.subtopics.record("subtopic", name, id)
}

// Len returns the number of cached topics and subtopics.
func (r *Registry) Len() (topics, subtopics int) {
	return len(r.topics.byName), len(r.subtopics.byName)
}

// Reset discards every mapping.
func (r *Registry) Reset() {
	r.topics = newTable()
	r.subtopics = newTable()
}
