package wire

import "fmt"

// ProtocolVersion is the SMQ protocol version sent in INIT and CONNECT.
const ProtocolVersion uint8 = 1

const (
	// HeaderSize is the size of the length and type fields.
	HeaderSize = 3

	// MaxFrameSize is the largest frame expressible with a 2-byte length.
	MaxFrameSize = 0xFFFF
)

// MessageType identifies the frame type (byte 2 of every frame).
type MessageType uint8

// Frame types.
const (
	TypeInit         MessageType = 1
	TypeConnect      MessageType = 2
	TypeConnAck      MessageType = 3
	TypeSubscribe    MessageType = 4
	TypeSubAck       MessageType = 5
	TypeCreate       MessageType = 6
	TypeCreateAck    MessageType = 7
	TypePublish      MessageType = 8
	TypeUnsubscribe  MessageType = 9
	TypeDisconnect   MessageType = 11
	TypePing         MessageType = 12
	TypePong         MessageType = 13
	TypeObserve      MessageType = 14
	TypeUnobserve    MessageType = 15
	TypeChange       MessageType = 16
	TypeCreateSub    MessageType = 17
	TypeCreateSubAck MessageType = 18

	// TypePubFrag is reserved and never produced by this implementation.
	TypePubFrag MessageType = 19
)

var typeNames = map[MessageType]string{
	TypeInit:         "INIT",
	TypeConnect:      "CONNECT",
	TypeConnAck:      "CONNACK",
	TypeSubscribe:    "SUBSCRIBE",
	TypeSubAck:       "SUBACK",
	TypeCreate:       "CREATE",
	TypeCreateAck:    "CREATEACK",
	TypePublish:      "PUBLISH",
	TypeUnsubscribe:  "UNSUBSCRIBE",
	TypeDisconnect:   "DISCONNECT",
	TypePing:         "PING",
	TypePong:         "PONG",
	TypeObserve:      "OBSERVE",
	TypeUnobserve:    "UNOBSERVE",
	TypeChange:       "CHANGE",
	TypeCreateSub:    "CREATESUB",
	TypeCreateSubAck: "CREATESUBACK",
	TypePubFrag:      "PUBFRAG",
}

// String returns the protocol name of the message type.
func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// IsValid reports whether t is a known frame type.
func (t MessageType) IsValid() bool {
	_, ok := typeNames[t]
	return ok
}

// IsControl reports whether t is a keepalive or session control frame.
func (t MessageType) IsControl() bool {
	switch t {
	case TypePing, TypePong, TypeDisconnect:
		return true
	default:
		return false
	}
}

// AckFor returns the acknowledgment type the broker answers a request with.
// Returns 0 for types without an acknowledgment.
func AckFor(t MessageType) MessageType {
	switch t {
	case TypeCreate:
		return TypeCreateAck
	case TypeSubscribe:
		return TypeSubAck
	case TypeCreateSub:
		return TypeCreateSubAck
	default:
		return 0
	}
}
