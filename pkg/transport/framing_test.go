package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf)

	msgs := []wire.Message{
		&wire.TopicRequest{Kind: wire.TypeCreate, Name: "orders"},
		&wire.Publish{TopicID: 7, SenderID: 42, Payload: []byte("hi")},
		&wire.Ping{},
	}
	for _, m := range msgs {
		if err := f.WriteMessage(m); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := f.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage %d failed: %v", i, err)
		}
		if got.Type() != want.Type() {
			t.Errorf("message %d: got %s, want %s", i, got.Type(), want.Type())
		}
	}

	if _, err := f.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameReaderReturnsHeader(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte{0, 4, 12, 0xFF}))

	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(frame, []byte{0, 4, 12, 0xFF}) {
		t.Errorf("got % x", frame)
	}
}

func TestFrameReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"length below header", []byte{0, 2, 1}, ErrFrameTooShort},
		{"truncated header", []byte{0}, ErrFrameTruncated},
		{"truncated body", []byte{0, 10, 8, 1, 2}, ErrFrameTruncated},
		{"missing body", []byte{0, 5}, ErrFrameTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tt.data)).ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFrameWriterRejectsBadFrames(t *testing.T) {
	w := NewFrameWriter(io.Discard)

	if err := w.WriteFrame([]byte{0, 2}); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("short frame: got %v", err)
	}
	if err := w.WriteFrame(make([]byte, wire.MaxFrameSize+1)); !errors.Is(err, wire.ErrFrameTooLarge) {
		t.Errorf("large frame: got %v", err)
	}
}

func TestFramerLogsFrames(t *testing.T) {
	var buf bytes.Buffer
	logger := &captureLogger{}
	f := NewFramer(&buf)
	f.SetLogger(logger, "conn-1")

	if err := f.WriteMessage(&wire.Publish{TopicID: 1, Payload: make([]byte, MaxLogFrameDataSize)}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := f.WriteMessage(&wire.Ping{}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if len(logger.events) != 3 {
		t.Fatalf("got %d events, want 3", len(logger.events))
	}

	out := logger.events[0]
	if out.Direction != log.DirectionOut || out.Layer != log.LayerTransport {
		t.Errorf("unexpected event: %+v", out)
	}
	if out.ConnectionID != "conn-1" {
		t.Errorf("ConnectionID: got %q", out.ConnectionID)
	}
	if !out.Frame.Truncated || len(out.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("large frame should be truncated in log, got %d bytes", len(out.Frame.Data))
	}
	if out.Frame.Size != MaxLogFrameDataSize+15 {
		t.Errorf("Size: got %d", out.Frame.Size)
	}

	if logger.events[1].Category != log.CategoryControl {
		t.Errorf("PING should be logged as control, got %s", logger.events[1].Category)
	}
	if logger.events[2].Direction != log.DirectionIn {
		t.Errorf("read frame should be logged as IN")
	}
}
