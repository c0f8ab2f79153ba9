package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/smq-protocol/smq-go/pkg/log"
)

// csvHeader lists the exported columns. Message columns are empty for
// events that carry no message.
var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category", "ephemeral_id",
	"type", "topic_id", "name", "sender_id", "subtopic_id", "payload_size", "accepted",
}

// RunExport writes every event of the log at path as JSON lines or CSV to
// output, or to stdout when output is empty.
func RunExport(path, format, output string) error {
	var write func(io.Writer, <-chan *log.Event) error
	switch format {
	case "jsonl":
		write = writeJSONL
	case "csv":
		write = writeCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	events := make(chan *log.Event)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			event, err := reader.Next()
			if err != nil {
				if err != io.EOF {
					readErr <- fmt.Errorf("failed to read event: %w", err)
				}
				return
			}
			events <- &event
		}
	}()

	if err := write(out, events); err != nil {
		// Drain so the reading goroutine can finish.
		for range events {
		}
		return err
	}
	select {
	case err := <-readErr:
		return err
	default:
		return nil
	}
}

func writeJSONL(w io.Writer, events <-chan *log.Event) error {
	enc := json.NewEncoder(w)
	for event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func writeCSV(w io.Writer, events <-chan *log.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for event := range events {
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(event *log.Event) []string {
	row := []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		formatID(event.EphemeralID),
		eventKind(event),
		"", "", "", "", "", "",
	}
	if m := event.Message; m != nil {
		row[7] = formatID(m.TopicID)
		row[8] = m.Name
		row[9] = formatID(m.SenderID)
		row[10] = formatID(m.SubtopicID)
		row[11] = strconv.Itoa(m.PayloadSize)
		if m.Accepted != nil {
			row[12] = strconv.FormatBool(*m.Accepted)
		}
	}
	return row
}

// eventKind names the event: the SMQ message type for message and control
// events, otherwise the kind of payload it carries.
func eventKind(event *log.Event) string {
	switch {
	case event.Message != nil:
		return event.Message.Type.String()
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.Frame != nil:
		return "frame"
	case event.StateChange != nil:
		return "state"
	case event.Error != nil:
		return "error"
	}
	return "unknown"
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
