package smq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/subscription"
	"github.com/smq-protocol/smq-go/pkg/topic"
	"github.com/smq-protocol/smq-go/pkg/transport"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// MaxPayloadSize is the largest payload a single PUBLISH can carry.
const MaxPayloadSize = wire.MaxFrameSize - wire.HeaderSize - 12

// MaxNameSize is the longest topic or subtopic name.
const MaxNameSize = wire.MaxFrameSize - wire.HeaderSize

// outbound is one entry of the send queue. Either frame or run is set.
type outbound struct {
	epoch uint64
	frame []byte
	msg   wire.Message
	run   func()
}

// Client is an SMQ client. All methods are safe for concurrent use.
type Client struct {
	config     Config
	dispatcher Dispatcher
	logger     *slog.Logger
	protoLog   log.Logger
	keepAlive  *transport.KeepAlive
	now        func() time.Time

	etid atomic.Uint32

	mu          sync.Mutex
	state       State
	handshaking bool
	closed      bool
	live        bool   // connected and not closing; guards OnClose
	epoch       uint64 // bumped on every teardown
	conn        net.Conn
	framer      *transport.Framer
	connID      string
	rand        uint32
	ipAddr      string

	topics    *topic.Registry
	pending   *topic.Pending
	subs      *subscription.Registry[MessageHandler]
	observers *subscription.Observers[ChangeHandler]

	queue []outbound
	wake  chan struct{}
	stop  chan struct{}
}

// New creates a client. No connection is made until Init or Connect.
func New(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, newError(ReasonInvalidArg, err)
	}
	config = config.withDefaults()

	c := &Client{
		config:     config,
		dispatcher: config.Dispatcher,
		logger:     config.Logger,
		protoLog:   config.ProtocolLogger,
		now:        time.Now,
		topics:     topic.NewRegistry(),
		pending:    topic.NewPending(),
		subs:       subscription.NewRegistry[MessageHandler](),
		observers:  subscription.NewObservers[ChangeHandler](),
		wake:       make(chan struct{}, 1),
	}
	c.keepAlive = transport.NewKeepAlive(config.KeepAlive, c.now())
	return c, nil
}

// Init performs the HTTPS upgrade and reads the broker's INIT message.
// On success the client is Initiating and Rand and IPAddr are available.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected || c.handshaking {
		state := c.state
		c.mu.Unlock()
		return newError(ReasonInvalidState, fmt.Errorf("init while %s", state))
	}
	c.handshaking = true
	epoch := c.epoch
	c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.initiate(ctx, epoch)

	c.mu.Lock()
	c.handshaking = false
	c.mu.Unlock()
	return err
}

func (c *Client) initiate(ctx context.Context, epoch uint64) error {
	conn, err := c.config.Upgrader.Upgrade(ctx, c.config.URL)
	if err != nil {
		e := upgradeError(err)
		c.debugLog("Init: upgrade failed", "url", c.config.URL, "error", err)
		c.logError("", e, "upgrade")
		return e
	}

	connID := uuid.NewString()
	framer := transport.NewFramer(conn)
	if c.protoLog != nil {
		framer.SetLogger(c.protoLog, connID)
	}

	msg, err := c.readHandshake(ctx, conn, framer, connID)
	if err != nil {
		conn.Close()
		c.logError(connID, err, "init")
		return err
	}
	hello, ok := msg.(*wire.Init)
	if !ok {
		conn.Close()
		return newError(ReasonProtocolError, fmt.Errorf("expected INIT, got %s", msg.Type()))
	}
	if hello.Version != wire.ProtocolVersion {
		conn.Close()
		return newError(ReasonProtocolError, fmt.Errorf("unsupported protocol version %d", hello.Version))
	}

	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		closed := c.closed
		c.mu.Unlock()
		conn.Close()
		if closed {
			return ErrClosed
		}
		return newError(ReasonDisconnect, errors.New("connection reset during init"))
	}
	c.conn = conn
	c.framer = framer
	c.connID = connID
	c.rand = hello.Rand
	c.ipAddr = hello.IPAddr
	c.state = StateInitiating
	c.mu.Unlock()

	c.debugLog("Init: broker ready", "conn_id", connID, "ip", hello.IPAddr)
	c.logState(connID, StateDisconnected, StateInitiating, "")
	return nil
}

// Connect logs in to the broker. If the client is Disconnected it runs
// Init first. uid identifies the client and must be 1..255 bytes;
// credentials, if any, must not exceed 255 bytes.
func (c *Client) Connect(ctx context.Context, uid []byte, credentials, info string) error {
	if len(uid) == 0 || len(uid) > 255 {
		return newError(ReasonInvalidArg, fmt.Errorf("uid must be 1..255 bytes, got %d", len(uid)))
	}
	if len(credentials) > 255 {
		return newError(ReasonInvalidArg, fmt.Errorf("credentials exceed 255 bytes"))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.handshaking {
		state := c.state
		c.mu.Unlock()
		return newError(ReasonInvalidState, fmt.Errorf("connect while %s", state))
	}
	needInit := c.state == StateDisconnected
	c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if needInit {
		if err := c.Init(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateInitiating || c.handshaking {
		state := c.state
		c.mu.Unlock()
		return newError(ReasonInvalidState, fmt.Errorf("connect while %s", state))
	}
	c.handshaking = true
	epoch, conn, framer, connID := c.epoch, c.conn, c.framer, c.connID
	c.mu.Unlock()

	err := c.login(ctx, epoch, conn, framer, connID, &wire.Connect{
		Version:     wire.ProtocolVersion,
		UID:         uid,
		Credentials: credentials,
		Info:        info,
	})

	c.mu.Lock()
	c.handshaking = false
	c.mu.Unlock()
	return err
}

func (c *Client) login(ctx context.Context, epoch uint64, conn net.Conn, framer *transport.Framer, connID string, msg *wire.Connect) error {
	if err := framer.WriteMessage(msg); err != nil {
		c.abortHandshake(epoch, connID)
		if errors.Is(err, wire.ErrFieldTooLong) {
			return newError(ReasonInvalidArg, err)
		}
		return newError(ReasonDisconnect, err)
	}
	c.logMessage(connID, log.DirectionOut, msg)

	reply, err := c.readHandshake(ctx, conn, framer, connID)
	if err != nil {
		c.abortHandshake(epoch, connID)
		c.logError(connID, err, "connect")
		return err
	}
	ack, ok := reply.(*wire.ConnAck)
	if !ok {
		c.abortHandshake(epoch, connID)
		return newError(ReasonProtocolError, fmt.Errorf("expected CONNACK, got %s", reply.Type()))
	}
	if ack.Code != 0 {
		c.abortHandshake(epoch, connID)
		e := connAckError(ack.Code, ack.Message)
		c.debugLog("Connect: rejected", "code", ack.Code, "error", e)
		c.logError(connID, e, "connect")
		return e
	}

	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return newError(ReasonDisconnect, errors.New("connection reset during connect"))
	}
	c.resetRegistriesLocked()
	c.etid.Store(ack.EphemeralID)
	_ = c.topics.Record(topic.SelfName, ack.EphemeralID)
	c.state = StateConnected
	c.live = true
	c.keepAlive.Reset(c.now())
	c.startSenderLocked()
	c.mu.Unlock()

	c.debugLog("Connect: connected", "conn_id", connID, "etid", ack.EphemeralID)
	c.logState(connID, StateInitiating, StateConnected, "")

	go c.receive(epoch, framer, connID)
	return nil
}

// readHandshake reads one message synchronously, bounded by ctx.
func (c *Client) readHandshake(ctx context.Context, conn net.Conn, framer *transport.Framer, connID string) (wire.Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	frame, err := framer.ReadFrame()
	stopped := stop()
	_ = conn.SetReadDeadline(time.Time{})

	if !stopped || ctx.Err() != nil {
		return nil, newError(ReasonCannotConnect, ctx.Err())
	}
	if err != nil {
		return nil, newError(ReasonDisconnect, err)
	}
	c.keepAlive.FrameReceived(c.now())

	msg, err := wire.Decode(frame)
	if err != nil {
		return nil, newError(ReasonProtocolError, err)
	}
	c.logMessage(connID, log.DirectionIn, msg)
	return msg, nil
}

func (c *Client) abortHandshake(epoch uint64, connID string) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.teardownLocked()
	c.mu.Unlock()
	c.logState(connID, prev, StateDisconnected, "handshake failed")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.ConnectTimeout)
}

// Close shuts the client down. With flush set on a connected client, the
// call returns immediately and the shutdown runs once every queued
// message has been written, followed by DISCONNECT. Without flush the
// socket is closed at once. onClose, if not nil, is called exactly once
// with a nil error when the shutdown completes. Calling Close again only
// invokes onClose. The global OnClose callback is not called.
func (c *Client) Close(flush bool, onClose CloseHandler) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.notifyClosed(onClose)
		return
	}
	c.closed = true
	c.live = false
	if flush && c.state == StateConnected && c.stop != nil {
		c.queue = append(c.queue, outbound{epoch: c.epoch, run: func() {
			c.shutdown(true, onClose)
		}})
		c.signalLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.shutdown(false, onClose)
}

// shutdown tears the connection down. DISCONNECT is only written when
// flushing, which runs on the sender goroutine.
func (c *Client) shutdown(flush bool, onClose CloseHandler) {
	c.mu.Lock()
	prev, framer, connID := c.state, c.framer, c.connID
	c.mu.Unlock()

	if flush && prev == StateConnected && framer != nil {
		msg := &wire.Disconnect{}
		if err := framer.WriteMessage(msg); err == nil {
			c.logMessage(connID, log.DirectionOut, msg)
		}
	}

	c.mu.Lock()
	c.teardownLocked()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()

	if prev != StateDisconnected {
		c.logState(connID, prev, StateDisconnected, "closed")
	}
	c.debugLog("Close: done", "conn_id", connID)
	c.notifyClosed(onClose)
}

func (c *Client) notifyClosed(onClose CloseHandler) {
	if onClose != nil {
		c.dispatch(func() { onClose(nil) })
	}
}

// fatal tears down the connection of epoch and reports err through
// OnClose. It is a no-op for stale epochs and after Close.
func (c *Client) fatal(epoch uint64, err *Error) {
	c.mu.Lock()
	if c.epoch != epoch || !c.live {
		c.mu.Unlock()
		return
	}
	prev, connID := c.state, c.connID
	c.teardownLocked()
	c.mu.Unlock()

	c.debugLog("connection lost", "conn_id", connID, "error", err)
	c.logError(connID, err, "connection")
	c.logState(connID, prev, StateDisconnected, err.Error())

	if h := c.config.OnClose; h != nil {
		c.dispatch(func() { h(err) })
	}
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.framer = nil
	c.state = StateDisconnected
	c.live = false
	c.epoch++
	c.etid.Store(0)
	c.queue = nil
	c.resetRegistriesLocked()
}

func (c *Client) resetRegistriesLocked() {
	c.topics.Reset()
	c.pending.Reset()
	c.subs.Reset()
	c.observers.Reset()
}

func (c *Client) dispatch(fn func()) {
	c.dispatcher.Dispatch(fn)
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the broker accepted the connection.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// EphemeralID returns the broker-assigned ID of this client, or 0 when
// not connected.
func (c *Client) EphemeralID() uint32 {
	return c.etid.Load()
}

// Rand returns the random number from the broker's INIT message.
func (c *Client) Rand() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rand
}

// IPAddr returns the client address as seen by the broker.
func (c *Client) IPAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ipAddr
}

// ConnectionID returns the ID used to correlate protocol log events of
// the current connection.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// TopicID returns the cached ID of a topic name.
func (c *Client) TopicID(name string) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics.Resolve(name)
}

// SubtopicID returns the cached ID of a subtopic name.
func (c *Client) SubtopicID(name string) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics.ResolveSubtopic(name)
}

// TopicName returns the cached name of a topic ID.
func (c *Client) TopicName(id uint32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics.NameOf(id)
}

// SubtopicName returns the cached name of a subtopic ID.
func (c *Client) SubtopicName(id uint32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics.SubtopicNameOf(id)
}
