// Package bridge forwards SMQ messages to an MQTT broker.
//
// Each Route maps an SMQ topic, optionally narrowed to one subtopic, to an
// MQTT topic. Payloads are forwarded unchanged.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smq-protocol/smq-go/pkg/smq"
)

// Subscriber is the part of smq.Client the bridge uses.
type Subscriber interface {
	Subscribe(topic string, onMsg smq.MessageHandler, ack smq.AckHandler) error
	SubscribeSubtopic(topic, subtopic string, onMsg smq.MessageHandler, ack smq.AckHandler) error
}

// Publisher publishes a payload to an MQTT topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Route maps SMQ messages to an MQTT topic.
type Route struct {
	SMQTopic string `yaml:"smq_topic"`
	Subtopic string `yaml:"subtopic,omitempty"`

	// MQTTTopic defaults to SMQTopic, or SMQTopic/Subtopic.
	MQTTTopic string `yaml:"mqtt_topic,omitempty"`
}

// Target returns the MQTT topic messages of r are published to.
func (r Route) Target() string {
	if r.MQTTTopic != "" {
		return r.MQTTTopic
	}
	if r.Subtopic != "" {
		return r.SMQTopic + "/" + r.Subtopic
	}
	return r.SMQTopic
}

func (r Route) String() string {
	src := r.SMQTopic
	if r.Subtopic != "" {
		src += "[" + r.Subtopic + "]"
	}
	return src + " -> " + r.Target()
}

// Errors returned by Start.
var (
	ErrNoRoutes     = errors.New("no routes configured")
	ErrStarted      = errors.New("bridge already started")
	ErrInvalidRoute = errors.New("invalid route")
)

// RouteStats counts the traffic of one route.
type RouteStats struct {
	Route     Route
	Accepted  bool
	Forwarded uint64
	Errors    uint64
}

// Bridge subscribes to every route and forwards what arrives.
type Bridge struct {
	sub    Subscriber
	pub    Publisher
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stats   []RouteStats
}

// New creates a bridge. A nil logger discards output.
func New(sub Subscriber, pub Publisher, routes []Route, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stats := make([]RouteStats, len(routes))
	for i, r := range routes {
		stats[i].Route = r
	}
	return &Bridge{sub: sub, pub: pub, logger: logger, stats: stats}
}

// Start subscribes every route. Subscriptions complete asynchronously;
// a rejected one is logged and shows as not accepted in Stats. Start must
// be called again after the SMQ client reconnects, on a new Bridge.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrStarted
	}
	if len(b.stats) == 0 {
		b.mu.Unlock()
		return ErrNoRoutes
	}
	for _, s := range b.stats {
		if s.Route.SMQTopic == "" {
			b.mu.Unlock()
			return fmt.Errorf("%w: empty SMQ topic", ErrInvalidRoute)
		}
	}
	b.started = true
	routes := make([]Route, len(b.stats))
	for i, s := range b.stats {
		routes[i] = s.Route
	}
	b.mu.Unlock()

	for i, r := range routes {
		var err error
		if r.Subtopic == "" {
			err = b.sub.Subscribe(r.SMQTopic, b.forwarder(i), b.acker(i))
		} else {
			err = b.sub.SubscribeSubtopic(r.SMQTopic, r.Subtopic, b.forwarder(i), b.acker(i))
		}
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", r, err)
		}
	}
	return nil
}

// Stats returns a snapshot of the per-route counters.
func (b *Bridge) Stats() []RouteStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RouteStats(nil), b.stats...)
}

func (b *Bridge) acker(i int) smq.AckHandler {
	return func(accepted bool, topic string, tid uint32, subtopic string, subtid uint32) {
		b.mu.Lock()
		b.stats[i].Accepted = accepted
		route := b.stats[i].Route
		b.mu.Unlock()

		if !accepted {
			b.logger.Warn("subscription rejected", "route", route.String())
			return
		}
		b.logger.Info("route active", "route", route.String(), "tid", tid, "subtid", subtid)
	}
}

func (b *Bridge) forwarder(i int) smq.MessageHandler {
	return func(msg smq.Message) {
		b.mu.Lock()
		route := b.stats[i].Route
		b.mu.Unlock()

		err := b.pub.Publish(route.Target(), msg.Payload)

		b.mu.Lock()
		if err != nil {
			b.stats[i].Errors++
		} else {
			b.stats[i].Forwarded++
		}
		b.mu.Unlock()

		if err != nil {
			b.logger.Warn("forward failed", "route", route.String(), "error", err)
			return
		}
		b.logger.Debug("forwarded", "route", route.String(), "sender", msg.SenderID, "size", len(msg.Payload))
	}
}

var _ Subscriber = (*smq.Client)(nil)
