package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smq-protocol/smq-go/pkg/bridge/mocks"
	"github.com/smq-protocol/smq-go/pkg/smq"
)

type subscription struct {
	topic    string
	subtopic string
	onMsg    smq.MessageHandler
	ack      smq.AckHandler
}

type fakeSubscriber struct {
	subs []subscription
	err  error
}

func (f *fakeSubscriber) Subscribe(topic string, onMsg smq.MessageHandler, ack smq.AckHandler) error {
	return f.SubscribeSubtopic(topic, "", onMsg, ack)
}

func (f *fakeSubscriber) SubscribeSubtopic(topic, subtopic string, onMsg smq.MessageHandler, ack smq.AckHandler) error {
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, subscription{topic, subtopic, onMsg, ack})
	return nil
}

func TestRouteTarget(t *testing.T) {
	assert.Equal(t, "sensors", Route{SMQTopic: "sensors"}.Target())
	assert.Equal(t, "sensors/temp", Route{SMQTopic: "sensors", Subtopic: "temp"}.Target())
	assert.Equal(t, "home/t", Route{SMQTopic: "sensors", Subtopic: "temp", MQTTTopic: "home/t"}.Target())
	assert.Equal(t, "sensors[temp] -> home/t", Route{SMQTopic: "sensors", Subtopic: "temp", MQTTTopic: "home/t"}.String())
}

func TestBridgeForwards(t *testing.T) {
	sub := &fakeSubscriber{}
	pub := mocks.NewMockPublisher(t)
	routes := []Route{
		{SMQTopic: "sensors"},
		{SMQTopic: "sensors", Subtopic: "temp", MQTTTopic: "home/temperature"},
	}

	b := New(sub, pub, routes, nil)
	require.NoError(t, b.Start())
	require.Len(t, sub.subs, 2)
	assert.Equal(t, "", sub.subs[0].subtopic)
	assert.Equal(t, "temp", sub.subs[1].subtopic)

	pub.EXPECT().Publish("sensors", []byte("a")).Return(nil).Once()
	pub.EXPECT().Publish("home/temperature", []byte("21.5")).Return(nil).Once()

	sub.subs[0].ack(true, "sensors", 5, "", 0)
	sub.subs[1].ack(true, "sensors", 5, "temp", 3)
	sub.subs[0].onMsg(smq.Message{TopicID: 5, Payload: []byte("a")})
	sub.subs[1].onMsg(smq.Message{TopicID: 5, SubtopicID: 3, Payload: []byte("21.5")})

	stats := b.Stats()
	assert.True(t, stats[0].Accepted)
	assert.Equal(t, uint64(1), stats[0].Forwarded)
	assert.Equal(t, uint64(1), stats[1].Forwarded)
}

func TestBridgeCountsErrors(t *testing.T) {
	sub := &fakeSubscriber{}
	pub := mocks.NewMockPublisher(t)
	pub.EXPECT().Publish(mock.Anything, mock.Anything).Return(ErrNotConnected)

	b := New(sub, pub, []Route{{SMQTopic: "t"}}, nil)
	require.NoError(t, b.Start())

	sub.subs[0].ack(false, "t", 0, "", 0)
	sub.subs[0].onMsg(smq.Message{Payload: []byte("x")})

	stats := b.Stats()
	assert.False(t, stats[0].Accepted)
	assert.Equal(t, uint64(0), stats[0].Forwarded)
	assert.Equal(t, uint64(1), stats[0].Errors)
}

func TestBridgeStartErrors(t *testing.T) {
	pub := mocks.NewMockPublisher(t)

	assert.ErrorIs(t, New(&fakeSubscriber{}, pub, nil, nil).Start(), ErrNoRoutes)
	assert.ErrorIs(t, New(&fakeSubscriber{}, pub, []Route{{MQTTTopic: "x"}}, nil).Start(), ErrInvalidRoute)

	b := New(&fakeSubscriber{}, pub, []Route{{SMQTopic: "t"}}, nil)
	require.NoError(t, b.Start())
	assert.ErrorIs(t, b.Start(), ErrStarted)

	failing := &fakeSubscriber{err: smq.ErrClosed}
	err := New(failing, pub, []Route{{SMQTopic: "t"}}, nil).Start()
	assert.True(t, errors.Is(err, smq.ErrClosed))
}

func TestPahoPublisher(t *testing.T) {
	_, err := NewPahoPublisher(PahoConfig{}, nil)
	assert.Error(t, err)

	_, err = NewPahoPublisher(PahoConfig{Broker: "tcp://localhost:1883", QoS: 3}, nil)
	assert.Error(t, err)

	p, err := NewPahoPublisher(PahoConfig{Broker: "tcp://localhost:1883", ClientID: "bridge"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Publish("t", []byte("x")), ErrNotConnected)
	p.Close()
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(PahoConfig{
		Broker:   "ssl://mqtt.example:8883",
		ClientID: "smq-bridge",
		Username: "user",
		Password: "secret",
	})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "mqtt.example:8883", opts.Servers[0].Host)
	assert.Equal(t, "smq-bridge", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
}
