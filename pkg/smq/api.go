package smq

import (
	"errors"
	"fmt"

	"github.com/smq-protocol/smq-go/pkg/topic"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

func run(after func()) {
	if after != nil {
		after()
	}
}

func (c *Client) checkConnectedLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.state != StateConnected {
		return newError(ReasonInvalidState, fmt.Errorf("not connected (%s)", c.state))
	}
	return nil
}

func checkTopicName(name string) error {
	if name == "" {
		return newError(ReasonInvalidArg, errors.New("empty topic name"))
	}
	if len(name) > MaxNameSize {
		return newError(ReasonInvalidArg, fmt.Errorf("topic name exceeds %d bytes", MaxNameSize))
	}
	return nil
}

func checkSubtopicName(name string) error {
	if len(name) > MaxNameSize {
		return newError(ReasonInvalidArg, fmt.Errorf("subtopic name exceeds %d bytes", MaxNameSize))
	}
	return nil
}

// requestLocked joins the waiters for key, sending the request if none
// is in flight.
func (c *Client) requestLocked(kind wire.MessageType, name string, k topic.Continuation) {
	if !c.pending.RequestOrJoin(topic.Key{Kind: kind, Name: name}, k) {
		c.enqueueLocked(&wire.TopicRequest{Kind: kind, Name: name})
	}
}

// resolveTopicLocked runs k with the ID of a topic, creating the topic
// if the ID is not cached.
func (c *Client) resolveTopicLocked(name string, k topic.Continuation) func() {
	if tid, ok := c.topics.Resolve(name); ok {
		return k(true, tid)
	}
	c.requestLocked(wire.TypeCreate, name, k)
	return nil
}

// resolveSubtopicLocked runs k with the ID of a subtopic. An empty name
// resolves to 0 immediately.
func (c *Client) resolveSubtopicLocked(name string, k topic.Continuation) func() {
	if name == "" {
		return k(true, 0)
	}
	if subtid, ok := c.topics.ResolveSubtopic(name); ok {
		return k(true, subtid)
	}
	c.requestLocked(wire.TypeCreateSub, name, k)
	return nil
}

func (c *Client) ackLater(ack AckHandler, accepted bool, topicName string, tid uint32, subtopic string, subtid uint32) func() {
	if ack == nil {
		return nil
	}
	return func() {
		c.dispatch(func() { ack(accepted, topicName, tid, subtopic, subtid) })
	}
}

// Create asks the broker for the ID of a topic without subscribing to
// it. ack may be nil.
func (c *Client) Create(topicName string, ack AckHandler) error {
	return c.CreateWithSubtopic(topicName, "", ack)
}

// CreateWithSubtopic resolves a subtopic and then creates a topic. The
// ack reports both IDs.
func (c *Client) CreateWithSubtopic(topicName, subtopic string, ack AckHandler) error {
	return c.createOrSubscribe(topicName, subtopic, nil, ack)
}

// CreateSub asks the broker for the ID of a subtopic. An empty name is
// acknowledged with ID 0.
func (c *Client) CreateSub(subtopic string, ack SubtopicAckHandler) error {
	if err := checkSubtopicName(subtopic); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.checkConnectedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	after := c.resolveSubtopicLocked(subtopic, func(accepted bool, subtid uint32) func() {
		if ack == nil {
			return nil
		}
		return func() {
			c.dispatch(func() { ack(accepted, subtopic, subtid) })
		}
	})
	c.mu.Unlock()
	run(after)
	return nil
}

// Subscribe registers onMsg for messages published to a topic. The name
// "self" subscribes to messages sent directly to this client. ack may
// be nil.
func (c *Client) Subscribe(topicName string, onMsg MessageHandler, ack AckHandler) error {
	return c.SubscribeSubtopic(topicName, "", onMsg, ack)
}

// SubscribeSubtopic registers onMsg for one subtopic of a topic.
// Messages for subtopics without their own handler go to the topic-wide
// handlers.
func (c *Client) SubscribeSubtopic(topicName, subtopic string, onMsg MessageHandler, ack AckHandler) error {
	if onMsg == nil {
		return newError(ReasonInvalidArg, errors.New("nil message handler"))
	}
	return c.createOrSubscribe(topicName, subtopic, onMsg, ack)
}

func (c *Client) createOrSubscribe(topicName, subtopic string, onMsg MessageHandler, ack AckHandler) error {
	if err := checkTopicName(topicName); err != nil {
		return err
	}
	if err := checkSubtopicName(subtopic); err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.checkConnectedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	after := c.resolveSubtopicLocked(subtopic, func(accepted bool, subtid uint32) func() {
		if !accepted {
			c.debugLog("subtopic rejected", "topic", topicName, "subtopic", subtopic)
			return c.ackLater(ack, false, topicName, 0, subtopic, subtid)
		}
		return c.createOrSubscribeTopicLocked(topicName, subtopic, subtid, onMsg, ack)
	})
	c.mu.Unlock()
	run(after)
	return nil
}

func (c *Client) createOrSubscribeTopicLocked(topicName, subtopic string, subtid uint32, onMsg MessageHandler, ack AckHandler) func() {
	complete := func(accepted bool, tid uint32) func() {
		if accepted && onMsg != nil {
			if subtid == 0 {
				c.subs.Add(tid, onMsg)
			} else {
				c.subs.AddSubtopic(tid, subtid, onMsg)
			}
		}
		return c.ackLater(ack, accepted, topicName, tid, subtopic, subtid)
	}

	if onMsg == nil {
		return c.resolveTopicLocked(topicName, complete)
	}

	if topicName == topic.SelfName {
		return complete(true, c.etid.Load())
	}
	// The broker already delivers this topic; only a local handler is new.
	if tid, ok := c.topics.Resolve(topicName); ok && c.subs.Has(tid) {
		return complete(true, tid)
	}
	c.requestLocked(wire.TypeSubscribe, topicName, complete)
	return nil
}

func checkPayload(data []byte) error {
	if len(data) > MaxPayloadSize {
		return newError(ReasonInvalidArg, fmt.Errorf("payload of %d bytes exceeds %d", len(data), MaxPayloadSize))
	}
	return nil
}

// Publish sends data to a topic, creating the topic first if its ID is
// not cached. Publishes to the same topic are sent in call order. If the
// broker rejects the topic the message is dropped.
func (c *Client) Publish(topicName string, data []byte) error {
	return c.PublishSubtopic(topicName, "", data)
}

// PublishString publishes s as a UTF-8 payload.
func (c *Client) PublishString(topicName, s string) error {
	return c.PublishSubtopic(topicName, "", []byte(s))
}

// PublishSubtopic sends data to a subtopic of a topic, resolving both
// names first.
func (c *Client) PublishSubtopic(topicName, subtopic string, data []byte) error {
	if err := checkTopicName(topicName); err != nil {
		return err
	}
	if err := checkSubtopicName(subtopic); err != nil {
		return err
	}
	if err := checkPayload(data); err != nil {
		return err
	}
	payload := append([]byte(nil), data...)

	c.mu.Lock()
	if err := c.checkConnectedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	after := c.resolveSubtopicLocked(subtopic, func(accepted bool, subtid uint32) func() {
		if !accepted {
			c.debugLog("dropping publish, subtopic rejected", "topic", topicName, "subtopic", subtopic)
			return nil
		}
		return c.resolveTopicLocked(topicName, func(accepted bool, tid uint32) func() {
			if !accepted {
				c.debugLog("dropping publish, topic rejected", "topic", topicName)
				return nil
			}
			c.publishLocked(tid, subtid, payload)
			return nil
		})
	})
	c.mu.Unlock()
	run(after)
	return nil
}

// PublishSubtopicID sends data to a named topic with an already known
// subtopic ID, for example the SubtopicID of a received message.
func (c *Client) PublishSubtopicID(topicName string, subtid uint32, data []byte) error {
	if err := checkTopicName(topicName); err != nil {
		return err
	}
	if err := checkPayload(data); err != nil {
		return err
	}
	payload := append([]byte(nil), data...)

	c.mu.Lock()
	if err := c.checkConnectedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	after := c.resolveTopicLocked(topicName, func(accepted bool, tid uint32) func() {
		if !accepted {
			c.debugLog("dropping publish, topic rejected", "topic", topicName)
			return nil
		}
		c.publishLocked(tid, subtid, payload)
		return nil
	})
	c.mu.Unlock()
	run(after)
	return nil
}

// PublishID sends data to a topic or ephemeral ID. Sending to a
// message's SenderID replies to that client alone.
func (c *Client) PublishID(tid, subtid uint32, data []byte) error {
	if err := checkPayload(data); err != nil {
		return err
	}
	payload := append([]byte(nil), data...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	c.publishLocked(tid, subtid, payload)
	return nil
}

func (c *Client) publishLocked(tid, subtid uint32, payload []byte) {
	c.enqueueLocked(&wire.Publish{
		TopicID:    tid,
		SenderID:   c.etid.Load(),
		SubtopicID: subtid,
		Payload:    payload,
	})
}

// Unsubscribe removes every handler of a topic, subtopic handlers
// included. Unknown topics are ignored.
func (c *Client) Unsubscribe(topicName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	if tid, ok := c.topics.Resolve(topicName); ok {
		c.unsubscribeLocked(tid)
	}
	return nil
}

// UnsubscribeID is Unsubscribe by topic ID.
func (c *Client) UnsubscribeID(tid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	c.unsubscribeLocked(tid)
	return nil
}

func (c *Client) unsubscribeLocked(tid uint32) {
	c.subs.Remove(tid)
	if tid != 0 {
		c.enqueueLocked(&wire.IDMessage{Kind: wire.TypeUnsubscribe, ID: tid})
	}
}

// Observe requests subscriber count changes for a topic, creating the
// topic first if needed.
func (c *Client) Observe(topicName string, onChange ChangeHandler) error {
	if err := checkTopicName(topicName); err != nil {
		return err
	}
	if onChange == nil {
		return newError(ReasonInvalidArg, errors.New("nil change handler"))
	}
	c.mu.Lock()
	if err := c.checkConnectedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	after := c.resolveTopicLocked(topicName, func(accepted bool, tid uint32) func() {
		if !accepted {
			c.debugLog("observe dropped, topic rejected", "topic", topicName)
			return nil
		}
		c.observeLocked(tid, onChange)
		return nil
	})
	c.mu.Unlock()
	run(after)
	return nil
}

// ObserveID requests subscriber count changes for a topic ID or for
// another client's ephemeral ID. An ephemeral observation reports a
// single change, 0, when that client disconnects.
func (c *Client) ObserveID(tid uint32, onChange ChangeHandler) error {
	if tid == 0 {
		return newError(ReasonInvalidArg, errors.New("topic ID 0"))
	}
	if onChange == nil {
		return newError(ReasonInvalidArg, errors.New("nil change handler"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	c.observeLocked(tid, onChange)
	return nil
}

func (c *Client) observeLocked(tid uint32, onChange ChangeHandler) {
	c.observers.Add(tid, onChange)
	c.enqueueLocked(&wire.IDMessage{Kind: wire.TypeObserve, ID: tid})
}

// Unobserve stops change notifications for a topic. Unknown topics are
// ignored.
func (c *Client) Unobserve(topicName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	if tid, ok := c.topics.Resolve(topicName); ok {
		c.unobserveLocked(tid)
	}
	return nil
}

// UnobserveID is Unobserve by ID.
func (c *Client) UnobserveID(tid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnectedLocked(); err != nil {
		return err
	}
	c.unobserveLocked(tid)
	return nil
}

func (c *Client) unobserveLocked(tid uint32) {
	c.observers.Remove(tid)
	if tid != 0 {
		c.enqueueLocked(&wire.IDMessage{Kind: wire.TypeUnobserve, ID: tid})
	}
}
