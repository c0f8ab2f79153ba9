package smq

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/transport"
)

// DefaultConnectTimeout bounds Init and Connect when the caller's context
// has no deadline.
const DefaultConnectTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// URL is the broker URL, e.g. https://broker.example/smq.lsp.
	URL string

	// TLSConfig is used by the default upgrader. Nil verifies against
	// the host's root set.
	TLSConfig *tls.Config

	// Upgrader overrides the HTTPS upgrade, e.g. for tests.
	Upgrader transport.Upgrader

	// OnClose is called once when an established connection is lost.
	// It is not called for a requested Close.
	OnClose CloseHandler

	// Dispatcher runs all asynchronous callbacks. Nil runs them directly
	// on the client's receive goroutine.
	Dispatcher Dispatcher

	// KeepAlive tunes idle detection. Zero fields use the defaults.
	KeepAlive transport.KeepAliveConfig

	// ConnectTimeout applies when the context passed to Init or Connect
	// has no deadline. Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Logger receives debug output. Nil disables it.
	Logger *slog.Logger

	// ProtocolLogger captures frames, messages and state changes.
	ProtocolLogger log.Logger
}

func (c Config) validate() error {
	if c.URL == "" {
		return errors.New("broker URL is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Upgrader == nil {
		c.Upgrader = &transport.HTTPUpgrader{TLSConfig: c.TLSConfig}
	}
	if c.Dispatcher == nil {
		c.Dispatcher = DirectDispatcher{}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}
