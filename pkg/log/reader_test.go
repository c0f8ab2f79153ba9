package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/smq-protocol/smq-go/pkg/wire"
)

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create capture: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func ptr[T any](v T) *T { return &v }

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionIn, Layer: LayerWire, Category: CategoryMessage,
			EphemeralID: 10, Message: &MessageEvent{Type: wire.TypeCreateAck, TopicID: 5}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Direction: DirectionIn, Layer: LayerWire, Category: CategoryControl,
			EphemeralID: 20, Message: &MessageEvent{Type: wire.TypePong}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", Layer: LayerClient, Category: CategoryState,
			EphemeralID: 20, StateChange: &StateChangeEvent{NewState: "DISCONNECTED"}},
	}
	path := writeCapture(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 4},
		{"connection", Filter{ConnectionID: "b"}, 2},
		{"direction", Filter{Direction: ptr(DirectionIn)}, 3},
		{"layer", Filter{Layer: ptr(LayerWire)}, 2},
		{"category", Filter{Category: ptr(CategoryState)}, 1},
		{"ephemeral id", Filter{EphemeralID: 20}, 2},
		{"message type", Filter{MessageType: ptr(wire.TypeCreateAck)}, 1},
		{"time range", Filter{TimeStart: ptr(base.Add(time.Second)), TimeEnd: ptr(base.Add(3 * time.Second))}, 2},
		{"combined", Filter{ConnectionID: "a", Layer: ptr(LayerWire), Direction: ptr(DirectionIn)}, 1},
		{"no match", Filter{ConnectionID: "zzz"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			got, err := r.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderPreservesOrder(t *testing.T) {
	path := writeCapture(t, []Event{
		{ConnectionID: "1"}, {ConnectionID: "2"}, {ConnectionID: "3"},
	})

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	for _, want := range []string{"1", "2", "3"} {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if ev.ConnectionID != want {
			t.Errorf("got %q, want %q", ev.ConnectionID, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.cbor")); err == nil {
		t.Error("expected error for missing file")
	}
}
