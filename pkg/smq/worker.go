package smq

import (
	"errors"
	"fmt"
	"time"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/topic"
	"github.com/smq-protocol/smq-go/pkg/transport"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// startSenderLocked starts the sender goroutine once. It survives
// reconnects and stops on Close.
func (c *Client) startSenderLocked() {
	if c.stop != nil || c.closed {
		return
	}
	c.stop = make(chan struct{})
	go c.send(c.stop)
}

func (c *Client) signalLocked() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// enqueueLocked encodes m and appends it to the send queue.
func (c *Client) enqueueLocked(m wire.Message) {
	frame, err := wire.Encode(m)
	if err != nil {
		c.debugLog("dropping unencodable message", "type", m.Type(), "error", err)
		return
	}
	c.queue = append(c.queue, outbound{epoch: c.epoch, frame: frame, msg: m})
	c.signalLocked()
}

// send drains the queue and drives the keep-alive.
func (c *Client) send(stop <-chan struct{}) {
	timer := time.NewTimer(c.nextWake())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.wake:
		case <-timer.C:
		}
		c.checkKeepAlive()
		c.drain()
		timer.Reset(c.nextWake())
	}
}

func (c *Client) nextWake() time.Duration {
	c.mu.Lock()
	connected := c.state == StateConnected && c.live
	c.mu.Unlock()
	if !connected {
		return c.keepAlive.Config().CheckInterval
	}
	return c.keepAlive.NextCheck(c.now())
}

func (c *Client) checkKeepAlive() {
	c.mu.Lock()
	if c.state != StateConnected || !c.live {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	action := c.keepAlive.Check(c.now())
	if action == transport.ActionPing {
		c.enqueueLocked(&wire.Ping{})
	}
	c.mu.Unlock()

	switch action {
	case transport.ActionPing:
		c.debugLog("link idle, sending ping")
	case transport.ActionTimeout:
		c.fatal(epoch, newError(ReasonPongTimeout, nil))
	}
}

func (c *Client) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		item := c.queue[0]
		c.queue[0] = outbound{}
		c.queue = c.queue[1:]
		framer, connID, current := c.framer, c.connID, c.epoch
		c.mu.Unlock()

		if item.run != nil {
			item.run()
			continue
		}
		if item.epoch != current || framer == nil {
			continue
		}
		if err := framer.WriteFrame(item.frame); err != nil {
			c.fatal(item.epoch, newError(ReasonDisconnect, err))
			continue
		}
		c.logMessage(connID, log.DirectionOut, item.msg)
	}
}

// receive reads and dispatches frames until the connection fails.
func (c *Client) receive(epoch uint64, framer *transport.Framer, connID string) {
	for {
		frame, err := framer.ReadFrame()
		if err != nil {
			// Expected after teardown, in which case fatal is a no-op.
			c.fatal(epoch, newError(ReasonDisconnect, err))
			return
		}
		c.keepAlive.FrameReceived(c.now())

		msg, err := wire.Decode(frame)
		if err != nil {
			c.fatal(epoch, newError(ReasonProtocolError, err))
			return
		}
		c.logMessage(connID, log.DirectionIn, msg)

		if e := c.handle(epoch, msg); e != nil {
			c.fatal(epoch, e)
			return
		}
	}
}

func (c *Client) handle(epoch uint64, msg wire.Message) *Error {
	switch m := msg.(type) {
	case *wire.Ack:
		return c.handleAck(epoch, m)
	case *wire.Publish:
		c.handlePublish(epoch, m)
	case *wire.Change:
		c.handleChange(epoch, m)
	case *wire.Ping:
		c.mu.Lock()
		if c.epoch == epoch {
			c.enqueueLocked(&wire.Pong{})
		}
		c.mu.Unlock()
	case *wire.Pong:
		// Liveness was recorded on receipt.
	case *wire.Disconnect:
		var cause error
		if m.Reason != "" {
			cause = errors.New(m.Reason)
		}
		return newError(ReasonServerDisconnect, cause)
	default:
		return newError(ReasonProtocolError, fmt.Errorf("unexpected %s", msg.Type()))
	}
	return nil
}

// requestFor maps an ack type to the request type it answers.
func requestFor(ack wire.MessageType) wire.MessageType {
	switch ack {
	case wire.TypeCreateAck:
		return wire.TypeCreate
	case wire.TypeSubAck:
		return wire.TypeSubscribe
	case wire.TypeCreateSubAck:
		return wire.TypeCreateSub
	default:
		return 0
	}
}

func (c *Client) handleAck(epoch uint64, m *wire.Ack) *Error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	if m.Accepted {
		var err error
		if m.Kind == wire.TypeCreateSubAck {
			err = c.topics.RecordSubtopic(m.Name, m.ID)
		} else {
			err = c.topics.Record(m.Name, m.ID)
		}
		if err != nil {
			c.mu.Unlock()
			return newError(ReasonProtocolError, err)
		}
	}

	key := topic.Key{Kind: requestFor(m.Kind), Name: m.Name}
	waiters := c.pending.Resolve(key)
	if len(waiters) == 0 {
		c.debugLog("ack without pending request", "type", m.Kind, "name", m.Name)
	}
	var afters []func()
	for _, w := range waiters {
		if after := w(m.Accepted, m.ID); after != nil {
			afters = append(afters, after)
		}
	}
	c.mu.Unlock()

	for _, after := range afters {
		after()
	}
	return nil
}

func (c *Client) handlePublish(epoch uint64, m *wire.Publish) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	handlers := c.subs.Lookup(m.TopicID, m.SubtopicID)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.debugLog("dropping message without subscriber", "tid", m.TopicID, "subtid", m.SubtopicID)
		return
	}
	msg := Message{
		SenderID:   m.SenderID,
		TopicID:    m.TopicID,
		SubtopicID: m.SubtopicID,
		Payload:    m.Payload,
	}
	for _, h := range handlers {
		c.dispatch(func() { h(msg) })
	}
}

func (c *Client) handleChange(epoch uint64, m *wire.Change) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	// An ID without a name is an ephemeral ID; its first CHANGE reports
	// the peer's disconnect, after which the observation ends.
	_, named := c.topics.NameOf(m.TopicID)
	handlers := c.observers.Collect(m.TopicID, !named)
	c.mu.Unlock()

	for _, h := range handlers {
		c.dispatch(func() { h(m.Subscribers, m.TopicID) })
	}
}
