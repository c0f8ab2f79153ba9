package smq

import "unicode/utf8"

// Message is a message delivered to a subscriber.
type Message struct {
	// SenderID is the publisher's ephemeral topic ID. Use it with
	// PublishID to reply to the sender alone.
	SenderID uint32

	TopicID    uint32
	SubtopicID uint32
	Payload    []byte
}

// Text returns the payload as a string if it is valid UTF-8.
func (m Message) Text() (string, bool) {
	if !utf8.Valid(m.Payload) {
		return "", false
	}
	return string(m.Payload), true
}

// MessageHandler receives published messages.
type MessageHandler func(msg Message)

// AckHandler receives the outcome of a create or subscribe request.
// subtid is 0 when no subtopic was requested.
type AckHandler func(accepted bool, topic string, tid uint32, subtopic string, subtid uint32)

// SubtopicAckHandler receives the outcome of a subtopic request.
type SubtopicAckHandler func(accepted bool, subtopic string, subtid uint32)

// ChangeHandler receives the new subscriber count of an observed topic.
// For an observed ephemeral ID a count of 0 means the peer disconnected.
type ChangeHandler func(subscribers uint32, tid uint32)

// CloseHandler is called when the connection closes. err is nil for a
// requested close.
type CloseHandler func(err error)
