package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
)

// ErrNotConnected is returned by Publish before Connect succeeds or while
// paho is reconnecting.
var ErrNotConnected = errors.New("mqtt not connected")

// PahoConfig configures the MQTT side of the bridge.
type PahoConfig struct {
	// Broker is the MQTT server URL, e.g. tcp://localhost:1883 or
	// ssl://broker:8883.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`

	// PublishTimeout bounds the wait for a publish acknowledgment.
	PublishTimeout time.Duration `yaml:"publish_timeout,omitempty"`

	TLSConfig *tls.Config `yaml:"-"`
}

// PahoPublisher publishes with the Eclipse paho client.
type PahoPublisher struct {
	cfg    PahoConfig
	client mqtt.Client
	logger *slog.Logger
}

// NewPahoPublisher creates a publisher. Call Connect before publishing.
func NewPahoPublisher(cfg PahoConfig, logger *slog.Logger) (*PahoPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker URL is required")
	}
	if cfg.QoS > maxQoS {
		return nil, fmt.Errorf("invalid QoS %d", cfg.QoS)
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &PahoPublisher{cfg: cfg, logger: logger}
	opts := buildClientOptions(cfg)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}
	p.client = mqtt.NewClient(opts)
	return p, nil
}

func buildClientOptions(cfg PahoConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	if cfg.TLSConfig != nil {
		opts.SetTLSConfig(cfg.TLSConfig)
	}
	return opts
}

// Connect connects to the MQTT broker and waits until it succeeds or ctx
// is done.
func (p *PahoPublisher) Connect(ctx context.Context) error {
	p.logger.Info("connecting to mqtt broker", "broker", p.cfg.Broker)
	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Publish implements Publisher.
func (p *PahoPublisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retained, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, giving in-flight publishes a short grace period.
func (p *PahoPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(defaultDisconnectQuiesce)
		p.logger.Info("mqtt disconnected")
	}
}

var _ Publisher = (*PahoPublisher)(nil)
