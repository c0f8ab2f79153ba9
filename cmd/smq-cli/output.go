package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/smq-protocol/smq-go/pkg/smq"
)

// maxHexPreview limits how much of a binary payload is printed.
const maxHexPreview = 32

// names resolves IDs back to the names they were created with.
type names interface {
	TopicName(id uint32) (string, bool)
	SubtopicName(id uint32) (string, bool)
}

// printer writes received messages and notifications.
type printer struct {
	w     io.Writer
	names names
}

func (p printer) message(m smq.Message) {
	fmt.Fprintln(p.w, formatMessage(m, p.names))
}

func (p printer) change(subscribers, tid uint32) {
	fmt.Fprintln(p.w, formatChange(subscribers, tid, p.names))
}

func topicLabel(tid uint32, n names) string {
	if name, ok := n.TopicName(tid); ok {
		return name
	}
	return "#" + strconv.FormatUint(uint64(tid), 10)
}

func formatMessage(m smq.Message, n names) string {
	label := topicLabel(m.TopicID, n)
	if m.SubtopicID != 0 {
		sub, ok := n.SubtopicName(m.SubtopicID)
		if !ok {
			sub = "#" + strconv.FormatUint(uint64(m.SubtopicID), 10)
		}
		label += "/" + sub
	}

	body := ""
	if text, ok := m.Text(); ok {
		body = text
	} else {
		data := m.Payload
		suffix := ""
		if len(data) > maxHexPreview {
			data = data[:maxHexPreview]
			suffix = "..."
		}
		body = color.MagentaString("<%d bytes> %s%s", len(m.Payload), hex.EncodeToString(data), suffix)
	}
	return fmt.Sprintf("%s %s %s",
		color.CyanString("[%s]", label),
		color.HiBlackString("from %d:", m.SenderID),
		body)
}

func formatChange(subscribers, tid uint32, n names) string {
	if _, ok := n.TopicName(tid); !ok {
		state := color.GreenString("connected")
		if subscribers == 0 {
			state = color.RedString("disconnected")
		}
		return fmt.Sprintf("%s client %d %s", color.YellowString("[change]"), tid, state)
	}
	return fmt.Sprintf("%s %s has %d subscriber(s)", color.YellowString("[change]"), topicLabel(tid, n), subscribers)
}

// ackPrinter reports create and subscribe outcomes.
func ackPrinter(w io.Writer, what string) smq.AckHandler {
	return func(accepted bool, topic string, tid uint32, subtopic string, subtid uint32) {
		name := topic
		if subtopic != "" {
			name += "/" + subtopic
		}
		if !accepted {
			fmt.Fprintf(w, "%s %s %s\n", color.RedString("[denied]"), what, name)
			return
		}
		fmt.Fprintf(w, "%s %s %s (tid %d, subtid %d)\n", color.GreenString("[ok]"), what, name, tid, subtid)
	}
}
