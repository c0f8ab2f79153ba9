package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrFieldTooLong   = errors.New("length-prefixed field exceeds 255 bytes")
	ErrShortFrame     = errors.New("frame shorter than header")
	ErrLengthMismatch = errors.New("frame length does not match header")
	ErrUnknownType    = errors.New("unknown message type")
	ErrMalformed      = errors.New("malformed payload")
)

// Encode serializes m into a complete frame including the length header.
// Frames larger than MaxFrameSize are rejected before anything is sent.
func Encode(m Message) ([]byte, error) {
	buf := make([]byte, HeaderSize, 64)
	buf[2] = byte(m.Type())

	switch msg := m.(type) {
	case *Init:
		buf = append(buf, msg.Version)
		buf = binary.BigEndian.AppendUint32(buf, msg.Rand)
		buf = append(buf, msg.IPAddr...)

	case *Connect:
		if len(msg.UID) > 0xFF || len(msg.Credentials) > 0xFF {
			return nil, ErrFieldTooLong
		}
		buf = append(buf, msg.Version, byte(len(msg.UID)))
		buf = append(buf, msg.UID...)
		buf = append(buf, byte(len(msg.Credentials)))
		buf = append(buf, msg.Credentials...)
		buf = append(buf, msg.Info...)

	case *ConnAck:
		buf = append(buf, msg.Code)
		buf = binary.BigEndian.AppendUint32(buf, msg.EphemeralID)
		buf = append(buf, msg.Message...)

	case *TopicRequest:
		if AckFor(msg.Kind) == 0 {
			return nil, fmt.Errorf("%w: %s is not a topic request", ErrUnknownType, msg.Kind)
		}
		buf = append(buf, msg.Name...)

	case *Ack:
		if !isAckType(msg.Kind) {
			return nil, fmt.Errorf("%w: %s is not an ack", ErrUnknownType, msg.Kind)
		}
		var rejected byte
		if !msg.Accepted {
			rejected = 1
		}
		buf = append(buf, rejected)
		buf = binary.BigEndian.AppendUint32(buf, msg.ID)
		buf = append(buf, msg.Name...)

	case *Publish:
		buf = binary.BigEndian.AppendUint32(buf, msg.TopicID)
		buf = binary.BigEndian.AppendUint32(buf, msg.SenderID)
		buf = binary.BigEndian.AppendUint32(buf, msg.SubtopicID)
		buf = append(buf, msg.Payload...)

	case *IDMessage:
		if !isIDType(msg.Kind) {
			return nil, fmt.Errorf("%w: %s does not carry an id", ErrUnknownType, msg.Kind)
		}
		buf = binary.BigEndian.AppendUint32(buf, msg.ID)

	case *Change:
		buf = binary.BigEndian.AppendUint32(buf, msg.TopicID)
		buf = binary.BigEndian.AppendUint32(buf, msg.Subscribers)

	case *Disconnect:
		buf = append(buf, msg.Reason...)

	case *Ping, *Pong:

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}

	if len(buf) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(buf))
	}
	binary.BigEndian.PutUint16(buf, uint16(len(buf)))
	return buf, nil
}

// Decode parses a complete frame as returned by a frame reader.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, ErrShortFrame
	}
	if n := int(binary.BigEndian.Uint16(frame)); n != len(frame) {
		return nil, fmt.Errorf("%w: header %d, got %d", ErrLengthMismatch, n, len(frame))
	}

	t := MessageType(frame[2])
	p := payload(frame[HeaderSize:])

	switch t {
	case TypeInit:
		version, err := p.readByte()
		if err != nil {
			return nil, err
		}
		rnd, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		return &Init{Version: version, Rand: rnd, IPAddr: p.readRest()}, nil

	case TypeConnect:
		version, err := p.readByte()
		if err != nil {
			return nil, err
		}
		uid, err := p.readPrefixed()
		if err != nil {
			return nil, err
		}
		creds, err := p.readPrefixed()
		if err != nil {
			return nil, err
		}
		return &Connect{
			Version:     version,
			UID:         append([]byte(nil), uid...),
			Credentials: string(creds),
			Info:        p.readRest(),
		}, nil

	case TypeConnAck:
		code, err := p.readByte()
		if err != nil {
			return nil, err
		}
		etid, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		return &ConnAck{Code: code, EphemeralID: etid, Message: p.readRest()}, nil

	case TypeCreate, TypeSubscribe, TypeCreateSub:
		return &TopicRequest{Kind: t, Name: p.readRest()}, nil

	case TypeCreateAck, TypeSubAck, TypeCreateSubAck:
		flag, err := p.readByte()
		if err != nil {
			return nil, err
		}
		id, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		return &Ack{Kind: t, Accepted: flag == 0, ID: id, Name: p.readRest()}, nil

	case TypePublish:
		var ids [3]uint32
		for i := range ids {
			v, err := p.readUint32()
			if err != nil {
				return nil, err
			}
			ids[i] = v
		}
		return &Publish{
			TopicID:    ids[0],
			SenderID:   ids[1],
			SubtopicID: ids[2],
			Payload:    append([]byte(nil), p...),
		}, nil

	case TypeUnsubscribe, TypeObserve, TypeUnobserve:
		id, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		if err := p.end(); err != nil {
			return nil, err
		}
		return &IDMessage{Kind: t, ID: id}, nil

	case TypeChange:
		tid, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		subscribers, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		if err := p.end(); err != nil {
			return nil, err
		}
		return &Change{TopicID: tid, Subscribers: subscribers}, nil

	case TypeDisconnect:
		return &Disconnect{Reason: p.readRest()}, nil

	case TypePing:
		if err := p.end(); err != nil {
			return nil, err
		}
		return &Ping{}, nil

	case TypePong:
		if err := p.end(); err != nil {
			return nil, err
		}
		return &Pong{}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}

// PeekType returns the message type of a frame without decoding it.
func PeekType(frame []byte) (MessageType, bool) {
	if len(frame) < HeaderSize {
		return 0, false
	}
	return MessageType(frame[2]), true
}

func isAckType(t MessageType) bool {
	return t == TypeCreateAck || t == TypeSubAck || t == TypeCreateSubAck
}

func isIDType(t MessageType) bool {
	return t == TypeUnsubscribe || t == TypeObserve || t == TypeUnobserve
}

// payload is a consuming reader over the bytes following the header.
type payload []byte

func (p *payload) readByte() (byte, error) {
	if len(*p) < 1 {
		return 0, ErrMalformed
	}
	b := (*p)[0]
	*p = (*p)[1:]
	return b, nil
}

func (p *payload) readUint32() (uint32, error) {
	if len(*p) < 4 {
		return 0, ErrMalformed
	}
	v := binary.BigEndian.Uint32(*p)
	*p = (*p)[4:]
	return v, nil
}

func (p *payload) readPrefixed() ([]byte, error) {
	n, err := p.readByte()
	if err != nil {
		return nil, err
	}
	if len(*p) < int(n) {
		return nil, ErrMalformed
	}
	b := (*p)[:n]
	*p = (*p)[n:]
	return b, nil
}

// end fails if fixed-size fields left bytes unread.
func (p payload) end() error {
	if len(p) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(p))
	}
	return nil
}

func (p *payload) readRest() string {
	s := string(*p)
	*p = nil
	return s
}
