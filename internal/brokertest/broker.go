// Package brokertest provides a scripted in-memory SMQ broker for client
// tests.
package brokertest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smq-protocol/smq-go/pkg/transport"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// DefaultTimeout bounds every Expect call.
const DefaultTimeout = 2 * time.Second

// Broker implements transport.Upgrader. Each Upgrade call creates an
// in-memory connection served by the broker. Fields must be set before
// the first Upgrade.
type Broker struct {
	t testing.TB

	// Rand and IPAddr are sent in INIT.
	Rand   uint32
	IPAddr string

	// Greeting replaces the INIT message when set.
	Greeting wire.Message

	// AutoConnAck answers CONNECT with a CONNACK built from the fields below.
	AutoConnAck    bool
	ConnAckCode    uint8
	ConnAckMessage string
	EphemeralID    uint32

	// AutoPong answers PING with PONG.
	AutoPong bool

	// UpgradeErr makes Upgrade fail.
	UpgradeErr error

	mu    sync.Mutex
	conns []*Conn
}

// New creates a broker that greets, accepts every CONNECT and answers pings.
func New(t testing.TB) *Broker {
	return &Broker{
		t:           t,
		Rand:        0x5EED,
		IPAddr:      "192.0.2.10",
		AutoConnAck: true,
		EphemeralID: 1000,
		AutoPong:    true,
	}
}

// Upgrade implements transport.Upgrader.
func (b *Broker) Upgrade(ctx context.Context, brokerURL string) (net.Conn, error) {
	if b.UpgradeErr != nil {
		return nil, b.UpgradeErr
	}
	client, server := net.Pipe()
	b.attach(server)
	return client, nil
}

// attach serves the broker side of conn.
func (b *Broker) attach(conn net.Conn) *Conn {
	c := &Conn{
		t:      b.t,
		broker: b,
		conn:   conn,
		framer: transport.NewFramer(conn),
		inbox:  make(chan wire.Message, 256),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()

	go c.serve()
	return c
}

// Conns returns the number of connections made so far.
func (b *Broker) Conns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Last returns the most recent connection.
func (b *Broker) Last() *Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(b.t, b.conns, "no connection made")
	return b.conns[len(b.conns)-1]
}

// Close drops every connection.
func (b *Broker) Close() {
	b.mu.Lock()
	conns := append([]*Conn(nil), b.conns...)
	b.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Conn is the broker side of one client connection.
type Conn struct {
	t      testing.TB
	broker *Broker
	conn   net.Conn
	framer *transport.Framer
	inbox  chan wire.Message
	done   chan struct{}
}

func (c *Conn) serve() {
	defer close(c.done)
	defer close(c.inbox)

	b := c.broker
	greeting := b.Greeting
	if greeting == nil {
		greeting = &wire.Init{Version: wire.ProtocolVersion, Rand: b.Rand, IPAddr: b.IPAddr}
	}
	if err := c.framer.WriteMessage(greeting); err != nil {
		return
	}

	for {
		msg, err := c.framer.ReadMessage()
		if err != nil {
			return
		}
		switch msg.(type) {
		case *wire.Connect:
			if b.AutoConnAck {
				ack := &wire.ConnAck{Code: b.ConnAckCode, EphemeralID: b.EphemeralID, Message: b.ConnAckMessage}
				if err := c.framer.WriteMessage(ack); err != nil {
					return
				}
			}
		case *wire.Ping:
			if b.AutoPong {
				if err := c.framer.WriteMessage(&wire.Pong{}); err != nil {
					return
				}
			}
		}
		c.inbox <- msg
	}
}

// Send writes m to the client.
func (c *Conn) Send(m wire.Message) {
	require.NoError(c.t, c.framer.WriteMessage(m))
}

// SendRaw writes a raw frame to the client.
func (c *Conn) SendRaw(frame []byte) {
	_, err := c.conn.Write(frame)
	require.NoError(c.t, err)
}

// Expect returns the next message from the client.
func (c *Conn) Expect() wire.Message {
	c.t.Helper()
	select {
	case msg, ok := <-c.inbox:
		require.True(c.t, ok, "connection closed while expecting a message")
		return msg
	case <-time.After(DefaultTimeout):
		require.FailNow(c.t, "timed out waiting for a message")
		return nil
	}
}

// ExpectNone asserts that the client sends nothing within d.
func (c *Conn) ExpectNone(d time.Duration) {
	c.t.Helper()
	select {
	case msg, ok := <-c.inbox:
		if ok {
			require.FailNow(c.t, "unexpected message", "%s", msg.Type())
		}
	case <-time.After(d):
	}
}

// ExpectClosed waits until the client closes the connection.
func (c *Conn) ExpectClosed() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(DefaultTimeout):
		require.FailNow(c.t, "timed out waiting for the client to close")
	}
}

// Close drops the connection.
func (c *Conn) Close() {
	_ = c.conn.Close()
}

// Next returns the next message from the client, which must be a T.
func Next[T wire.Message](c *Conn) T {
	c.t.Helper()
	msg := c.Expect()
	v, ok := msg.(T)
	require.True(c.t, ok, "got %T (%s)", msg, msg.Type())
	return v
}

// Compile-time interface satisfaction check.
var _ transport.Upgrader = (*Broker)(nil)
