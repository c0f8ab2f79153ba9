package log

import (
	"time"

	"github.com/smq-protocol/smq-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one connection epoch (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// BrokerURL is the broker the connection was made to.
	BrokerURL string `cbor:"6,keyasint,omitempty"`

	// EphemeralID is the client's broker-assigned ID (0 before CONNACK).
	EphemeralID uint32 `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a frame from the broker.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame to the broker.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the decoded message layer.
	LayerWire Layer = 1
	// LayerClient is the connection lifecycle layer.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryControl indicates PING, PONG or DISCONNECT.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including the header).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded SMQ message at the wire layer.
// Only the fields meaningful for Type are set.
type MessageEvent struct {
	Type wire.MessageType `cbor:"1,keyasint"`

	// TopicID is the topic, ephemeral or acknowledged ID.
	TopicID uint32 `cbor:"2,keyasint,omitempty"`

	// SenderID is the publisher's ephemeral ID (PUBLISH only).
	SenderID uint32 `cbor:"3,keyasint,omitempty"`

	// SubtopicID is the subtopic ID (PUBLISH only).
	SubtopicID uint32 `cbor:"4,keyasint,omitempty"`

	// Name is the topic or subtopic name of requests and acks.
	Name string `cbor:"5,keyasint,omitempty"`

	// Accepted is set for acks.
	Accepted *bool `cbor:"6,keyasint,omitempty"`

	// PayloadSize is the application payload length (PUBLISH only).
	PayloadSize int `cbor:"7,keyasint,omitempty"`

	// Count is the subscriber count (CHANGE only).
	Count uint32 `cbor:"8,keyasint,omitempty"`

	// Code is the CONNACK response code.
	Code uint8 `cbor:"9,keyasint,omitempty"`

	// Text is free-form text: INIT address, CONNACK error, DISCONNECT reason.
	Text string `cbor:"10,keyasint,omitempty"`
}

// NewMessageEvent summarizes m for logging. Payload bytes are not copied.
func NewMessageEvent(m wire.Message) *MessageEvent {
	ev := &MessageEvent{Type: m.Type()}
	switch msg := m.(type) {
	case *wire.Init:
		ev.TopicID = msg.Rand
		ev.Text = msg.IPAddr
	case *wire.Connect:
		ev.Name = string(msg.UID)
		ev.Text = msg.Info
	case *wire.ConnAck:
		ev.Code = msg.Code
		ev.TopicID = msg.EphemeralID
		ev.Text = msg.Message
	case *wire.TopicRequest:
		ev.Name = msg.Name
	case *wire.Ack:
		accepted := msg.Accepted
		ev.Accepted = &accepted
		ev.TopicID = msg.ID
		ev.Name = msg.Name
	case *wire.Publish:
		ev.TopicID = msg.TopicID
		ev.SenderID = msg.SenderID
		ev.SubtopicID = msg.SubtopicID
		ev.PayloadSize = len(msg.Payload)
	case *wire.IDMessage:
		ev.TopicID = msg.ID
	case *wire.Change:
		ev.TopicID = msg.TopicID
		ev.Count = msg.Subscribers
	case *wire.Disconnect:
		ev.Text = msg.Reason
	}
	return ev
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityReconnect indicates a reconnection manager state change.
	StateEntityReconnect StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityReconnect:
		return "RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures keepalive and disconnect frames.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Reason is the optional DISCONNECT reason text.
	Reason string `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a ping message.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgPong indicates a pong message.
	ControlMsgPong ControlMsgType = 1
	// ControlMsgDisconnect indicates a disconnect message.
	ControlMsgDisconnect ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// NewControlMsgEvent returns the control event for m, or nil if m is
// not a control message.
func NewControlMsgEvent(m wire.Message) *ControlMsgEvent {
	switch msg := m.(type) {
	case *wire.Ping:
		return &ControlMsgEvent{Type: ControlMsgPing}
	case *wire.Pong:
		return &ControlMsgEvent{Type: ControlMsgPong}
	case *wire.Disconnect:
		return &ControlMsgEvent{Type: ControlMsgDisconnect, Reason: msg.Reason}
	default:
		return nil
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the SMQ reason code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
