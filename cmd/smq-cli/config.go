package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smq-protocol/smq-go/pkg/bridge"
	"github.com/smq-protocol/smq-go/pkg/persistence"
	"github.com/smq-protocol/smq-go/pkg/transport"
)

// Config is the merged configuration of a command: file values first,
// explicitly set flags override them.
type Config struct {
	URL         string `yaml:"url"`
	UID         string `yaml:"uid"`
	Password    string `yaml:"password"`
	Info        string `yaml:"info"`
	Insecure    bool   `yaml:"insecure"`
	CAFile      string `yaml:"ca_file"`
	Fingerprint string `yaml:"fingerprint"`
	KnownHosts  string `yaml:"known_brokers"`
	ProtocolLog string `yaml:"protocol_log"`
	LogLevel    string `yaml:"log_level"`
	Reconnect   bool   `yaml:"reconnect"`

	KeepAlive KeepAliveConfig `yaml:"keepalive"`

	MQTT   bridge.PahoConfig `yaml:"mqtt"`
	Routes []bridge.Route    `yaml:"routes"`
}

// KeepAliveConfig holds keepalive overrides. Zero values use the client
// defaults.
type KeepAliveConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

func defaultConfig() Config {
	return Config{LogLevel: "info"}
}

// loadConfigFile reads a YAML configuration file over cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// commonFlags registers the flags shared by every command.
type commonFlags struct {
	config      string
	url         string
	uid         string
	password    string
	info        string
	insecure    bool
	caFile      string
	fingerprint string
	knownHosts  string
	protocolLog string
	logLevel    string
	reconnect   bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.StringVar(&f.url, "url", "", "Broker URL, e.g. https://broker.local/smq.lsp")
	fs.StringVar(&f.uid, "uid", "", "Client identifier (default: random UUID)")
	fs.StringVar(&f.password, "password", "", "Shared password; credentials are derived per connection")
	fs.StringVar(&f.info, "info", "", "Informational string sent with CONNECT")
	fs.BoolVar(&f.insecure, "insecure", false, "Skip broker certificate verification")
	fs.StringVar(&f.caFile, "ca", "", "PEM file with trusted CA certificates")
	fs.StringVar(&f.fingerprint, "fingerprint", "", "Pin the broker certificate by SHA-256 fingerprint")
	fs.StringVar(&f.knownHosts, "known-brokers", "", "Trust each broker's first certificate and record it in this file")
	fs.StringVar(&f.protocolLog, "protocol-log", "", "Write a protocol capture to this file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	fs.BoolVar(&f.reconnect, "reconnect", false, "Reconnect with backoff when the connection is lost")
	return f
}

// resolve merges defaults, the config file and explicitly set flags.
func (f *commonFlags) resolve(fs *flag.FlagSet) (Config, error) {
	cfg := defaultConfig()
	if f.config != "" {
		if err := loadConfigFile(f.config, &cfg); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "url":
			cfg.URL = f.url
		case "uid":
			cfg.UID = f.uid
		case "password":
			cfg.Password = f.password
		case "info":
			cfg.Info = f.info
		case "insecure":
			cfg.Insecure = f.insecure
		case "ca":
			cfg.CAFile = f.caFile
		case "fingerprint":
			cfg.Fingerprint = f.fingerprint
		case "known-brokers":
			cfg.KnownHosts = f.knownHosts
		case "protocol-log":
			cfg.ProtocolLog = f.protocolLog
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "reconnect":
			cfg.Reconnect = f.reconnect
		}
	})

	if cfg.URL == "" {
		return cfg, fmt.Errorf("broker URL required (-url or config file)")
	}
	return cfg, nil
}

// tlsConfig builds the transport TLS settings of cfg.
func (cfg Config) tlsConfig() (*transport.TLSConfig, error) {
	tc := &transport.TLSConfig{
		InsecureSkipVerify: cfg.Insecure,
		PinnedFingerprint:  cfg.Fingerprint,
	}
	if cfg.CAFile != "" {
		pool, err := transport.LoadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = pool
	}
	if cfg.KnownHosts != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid broker URL: %w", err)
		}
		known := persistence.NewKnownBrokers(cfg.KnownHosts)
		if err := known.Load(); err != nil {
			return nil, err
		}
		tc.VerifyConnection = known.Verifier(u.Hostname())
	}
	return tc, nil
}

func (cfg Config) keepAlive() transport.KeepAliveConfig {
	return transport.KeepAliveConfig{
		PingInterval: cfg.KeepAlive.PingInterval,
		PongTimeout:  cfg.KeepAlive.PongTimeout,
	}
}
