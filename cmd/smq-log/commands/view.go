// Package commands implements the smq-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

func (f ViewFilter) matches(e log.Event) bool {
	filter := log.Filter{Layer: f.Layer, Direction: f.Direction, Category: f.Category}
	return filter.Matches(e)
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Type.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.ControlMsg != nil:
		typeLabel = event.ControlMsg.Type.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, connID, event.Direction.String(), layerStr, typeLabel)
	if event.EphemeralID != 0 {
		fmt.Fprintf(w, " (etid %d)", event.EphemeralID)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		if event.ControlMsg.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", event.ControlMsg.Reason)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	switch msg.Type {
	case wire.TypeInit:
		fmt.Fprintf(w, "  Rand: 0x%08x\n", msg.TopicID)
		fmt.Fprintf(w, "  Address: %s\n", msg.Text)
	case wire.TypeConnect:
		fmt.Fprintf(w, "  UID: %q\n", msg.Name)
		if msg.Text != "" {
			fmt.Fprintf(w, "  Info: %s\n", msg.Text)
		}
	case wire.TypeConnAck:
		fmt.Fprintf(w, "  Code: %d\n", msg.Code)
		if msg.Code == 0 {
			fmt.Fprintf(w, "  EphemeralID: %d\n", msg.TopicID)
		}
		if msg.Text != "" {
			fmt.Fprintf(w, "  Message: %s\n", msg.Text)
		}
	case wire.TypeCreate, wire.TypeSubscribe, wire.TypeCreateSub:
		fmt.Fprintf(w, "  Name: %s\n", msg.Name)
	case wire.TypeCreateAck, wire.TypeSubAck, wire.TypeCreateSubAck:
		accepted := msg.Accepted != nil && *msg.Accepted
		fmt.Fprintf(w, "  Name: %s\n", msg.Name)
		fmt.Fprintf(w, "  ID: %d  Accepted: %t\n", msg.TopicID, accepted)
	case wire.TypePublish:
		fmt.Fprintf(w, "  Topic: %d  Subtopic: %d  Sender: %d\n", msg.TopicID, msg.SubtopicID, msg.SenderID)
		fmt.Fprintf(w, "  Payload: %d bytes\n", msg.PayloadSize)
	case wire.TypeChange:
		fmt.Fprintf(w, "  Topic: %d  Subscribers: %d\n", msg.TopicID, msg.Count)
	case wire.TypeUnsubscribe, wire.TypeObserve, wire.TypeUnobserve:
		fmt.Fprintf(w, "  Topic: %d\n", msg.TopicID)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "client":
		return log.LayerClient, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or client)", s)
	}
}

// ParseDirectionFlag parses a direction string (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

// ParseMessageTypeFlag parses a message type name such as PUBLISH
// (case-insensitive).
func ParseMessageTypeFlag(s string) (wire.MessageType, error) {
	want := strings.ToUpper(s)
	for t := wire.TypeInit; t <= wire.TypePubFrag; t++ {
		if t.IsValid() && t.String() == want {
			return t, nil
		}
	}
	return 0, fmt.Errorf("invalid message type: %s", s)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if filter.matches(event) {
			formatEvent(output, event)
		}
	}
	return nil
}
