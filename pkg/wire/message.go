package wire

// Message is implemented by every decoded SMQ frame.
type Message interface {
	Type() MessageType
}

// Init is the first frame the broker sends after the HTTPS upgrade.
type Init struct {
	Version uint8
	Rand    uint32

	// IPAddr is the client address as observed by the broker.
	IPAddr string
}

// Connect opens the SMQ session.
type Connect struct {
	Version     uint8
	UID         []byte
	Credentials string
	Info        string
}

// ConnAck answers Connect. A zero Code means the session was accepted.
type ConnAck struct {
	Code        uint8
	EphemeralID uint32
	Message     string
}

// TopicRequest asks the broker to resolve a name.
// Kind is one of TypeCreate, TypeSubscribe or TypeCreateSub.
type TopicRequest struct {
	Kind MessageType
	Name string
}

// Ack is the broker's answer to a TopicRequest.
// Kind is one of TypeCreateAck, TypeSubAck or TypeCreateSubAck.
type Ack struct {
	Kind     MessageType
	Accepted bool
	ID       uint32
	Name     string
}

// Publish carries an application payload.
type Publish struct {
	TopicID    uint32
	SenderID   uint32
	SubtopicID uint32
	Payload    []byte
}

// IDMessage is a request carrying a single topic or ephemeral ID.
// Kind is one of TypeUnsubscribe, TypeObserve or TypeUnobserve.
type IDMessage struct {
	Kind MessageType
	ID   uint32
}

// Change reports a new subscriber count for an observed topic.
type Change struct {
	TopicID     uint32
	Subscribers uint32
}

// Disconnect ends the session. Reason is optional.
type Disconnect struct {
	Reason string
}

// Ping is sent by either side to probe the connection.
type Ping struct{}

// Pong answers Ping.
type Pong struct{}

func (*Init) Type() MessageType { return TypeInit }
func (*Connect) Type() MessageType { return TypeConnect }
func (*ConnAck) Type() MessageType { return TypeConnAck }
func (m *TopicRequest) Type() MessageType { return m.Kind }
func (m *Ack) Type() MessageType { return m.Kind }
func (*Publish) Type() MessageType { return TypePublish }
func (m *IDMessage) Type() MessageType { return m.Kind }
func (*Change) Type() MessageType { return TypeChange }
func (*Disconnect) Type() MessageType { return TypeDisconnect }
func (*Ping) Type() MessageType { return TypePing }
func (*Pong) Type() MessageType { return TypePong }
