package topic

import (
	"errors"
	"testing"
)

func TestRegistryRecordAndResolve(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Resolve("orders"); ok {
		t.Fatal("empty registry should not resolve")
	}
	if err := r.Record("orders", 501); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	id, ok := r.Resolve("orders")
	if !ok || id != 501 {
		t.Errorf("Resolve: got (%d, %v), want (501, true)", id, ok)
	}
	name, ok := r.NameOf(501)
	if !ok || name != "orders" {
		t.Errorf("NameOf: got (%q, %v)", name, ok)
	}

	// Topics and subtopics are separate namespaces.
	if _, ok := r.ResolveSubtopic("orders"); ok {
		t.Error("topic should not resolve as subtopic")
	}
}

func TestRegistryRecordIdempotent(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		if err := r.RecordSubtopic("temp", 9); err != nil {
			t.Fatalf("RecordSubtopic %d failed: %v", i, err)
		}
	}
	if _, subs := r.Len(); subs != 1 {
		t.Errorf("subtopics: got %d, want 1", subs)
	}
}

func TestRegistryRecordMismatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Record("orders", 1); err != nil {
		t.Fatal(err)
	}

	if err := r.Record("orders", 2); !errors.Is(err, ErrIDMismatch) {
		t.Errorf("same name, new id: got %v", err)
	}
	if err := r.Record("invoices", 1); !errors.Is(err, ErrIDMismatch) {
		t.Errorf("same id, new name: got %v", err)
	}

	// First writer wins.
	if id, _ := r.Resolve("orders"); id != 1 {
		t.Errorf("mapping changed to %d", id)
	}
	if _, ok := r.Resolve("invoices"); ok {
		t.Error("conflicting name should not be recorded")
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.Record(SelfName, 77)
	r.RecordSubtopic("devinfo", 3)
	r.Reset()

	topics, subs := r.Len()
	if topics != 0 || subs != 0 {
		t.Errorf("after Reset: %d topics, %d subtopics", topics, subs)
	}
	if _, ok := r.NameOf(77); ok {
		t.Error("reverse mapping survived Reset")
	}
}
