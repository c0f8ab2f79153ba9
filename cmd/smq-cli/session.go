package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smq-protocol/smq-go/pkg/auth"
	"github.com/smq-protocol/smq-go/pkg/connection"
	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/smq"
	"github.com/smq-protocol/smq-go/pkg/transport"
)

// session owns a client, its optional protocol capture and reconnection.
type session struct {
	cfg    Config
	logger *slog.Logger
	client *smq.Client
	mgr    *connection.Manager

	capture    *log.FileLogger
	dispatcher *smq.QueueDispatcher

	// setup runs after every successful connect. The broker forgets
	// subscriptions with the connection, so it must restore them.
	setup func(*smq.Client) error
}

func newSession(cfg Config, logger *slog.Logger) (*session, error) {
	s := &session{cfg: cfg, logger: logger}
	if s.cfg.UID == "" {
		s.cfg.UID = uuid.NewString()
	}

	tc, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}
	tlsConfig, err := transport.NewClientTLSConfig(tc)
	if err != nil {
		return nil, err
	}

	clientCfg := smq.Config{
		URL:       cfg.URL,
		TLSConfig: tlsConfig,
		KeepAlive: cfg.keepAlive(),
		Logger:    logger,
		OnClose:   s.onClose,
	}

	if cfg.ProtocolLog != "" {
		s.capture, err = log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		clientCfg.ProtocolLogger = s.capture
	}

	// Handlers may block on terminal or MQTT output; keep them off the
	// receive loop.
	s.dispatcher = smq.NewQueueDispatcher(256)
	clientCfg.Dispatcher = s.dispatcher

	s.client, err = smq.New(clientCfg)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	s.mgr = connection.NewManager(s.connectOnce)
	s.mgr.SetAutoReconnect(cfg.Reconnect)
	if s.capture != nil {
		s.mgr.SetProtocolLogger(s.capture)
	}
	s.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		logger.Info("reconnecting", "attempt", attempt, "delay", delay)
	})
	s.mgr.OnGiveUp(func(err error) {
		logger.Error("giving up", "error", err)
	})
	return s, nil
}

// connectOnce runs the INIT and CONNECT exchange and the setup hook.
func (s *session) connectOnce(ctx context.Context) error {
	if err := s.client.Init(ctx); err != nil {
		return err
	}
	var credentials string
	if s.cfg.Password != "" {
		credentials = auth.Derive(s.cfg.Password, s.client.Rand(), s.client.IPAddr())
	}
	if err := s.client.Connect(ctx, []byte(s.cfg.UID), credentials, s.cfg.Info); err != nil {
		return err
	}
	s.logger.Info("connected",
		"url", s.cfg.URL,
		"etid", s.client.EphemeralID(),
		"address", s.client.IPAddr())

	// The connection is up at this point. A setup failure is reported
	// but does not count as a failed attempt.
	if s.setup != nil {
		if err := s.setup(s.client); err != nil {
			s.logger.Error("setup failed", "error", err)
		}
	}
	return nil
}

// connect makes the first connection and starts reconnection if enabled.
func (s *session) connect(ctx context.Context) error {
	if err := s.mgr.Connect(ctx); err != nil {
		return err
	}
	if s.cfg.Reconnect {
		s.mgr.StartReconnectLoop()
	}
	return nil
}

func (s *session) onClose(err error) {
	s.logger.Warn("connection lost", "error", err, "retryable", smq.IsRetryable(err))
	s.mgr.NotifyConnectionLost(err)
}

// close stops reconnection, flushes the outbound queue and waits for the
// client to shut down.
func (s *session) close() {
	s.mgr.Close()
	done := make(chan struct{})
	s.client.Close(true, func(error) { close(done) })
	<-done
	s.closeResources()
}

func (s *session) closeResources() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			s.logger.Warn("failed to close protocol log", "error", err)
		}
	}
}
