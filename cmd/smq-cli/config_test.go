package main

import (
	"crypto/tls"
	"crypto/x509"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smq-protocol/smq-go/pkg/bridge"
	"github.com/smq-protocol/smq-go/pkg/persistence"
)

const sampleConfig = `
url: https://file.local/smq.lsp
uid: sensor-1
info: from file
log_level: debug
reconnect: true
keepalive:
  ping_interval: 10s
  pong_timeout: 3s
mqtt:
  broker: tcp://localhost:1883
  client_id: bridge-1
  qos: 1
routes:
  - smq_topic: sensors
    subtopic: temp
  - smq_topic: alarms
    mqtt_topic: home/alarms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseCommon(t *testing.T, args ...string) (*flag.FlagSet, *commonFlags) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := addCommonFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func TestResolveConfigFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	fs, f := parseCommon(t, "-config", path)

	cfg, err := f.resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, "https://file.local/smq.lsp", cfg.URL)
	assert.Equal(t, "sensor-1", cfg.UID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, 10*time.Second, cfg.KeepAlive.PingInterval)
	assert.Equal(t, 3*time.Second, cfg.KeepAlive.PongTimeout)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, []bridge.Route{
		{SMQTopic: "sensors", Subtopic: "temp"},
		{SMQTopic: "alarms", MQTTTopic: "home/alarms"},
	}, cfg.Routes)
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	fs, f := parseCommon(t, "-config", path, "-url", "https://flag.local/smq.lsp", "-reconnect=false")

	cfg, err := f.resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.local/smq.lsp", cfg.URL)
	assert.False(t, cfg.Reconnect)
	// Unset flags keep the file values.
	assert.Equal(t, "sensor-1", cfg.UID)
	assert.Equal(t, "from file", cfg.Info)
}

func TestResolveDefaults(t *testing.T) {
	fs, f := parseCommon(t, "-url", "https://broker.local/smq.lsp")

	cfg, err := f.resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Reconnect)
	assert.Empty(t, cfg.Routes)
}

func TestResolveErrors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		fs, f := parseCommon(t)
		_, err := f.resolve(fs)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		fs, f := parseCommon(t, "-config", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := f.resolve(fs)
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeConfig(t, "url: [unterminated")
		fs, f := parseCommon(t, "-config", path)
		_, err := f.resolve(fs)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestConfigTLS(t *testing.T) {
	cfg := Config{Insecure: true, Fingerprint: "ab:cd"}
	tc, err := cfg.tlsConfig()
	require.NoError(t, err)
	assert.True(t, tc.InsecureSkipVerify)
	assert.Equal(t, "ab:cd", tc.PinnedFingerprint)
	assert.Nil(t, tc.RootCAs)

	cfg = Config{CAFile: filepath.Join(t.TempDir(), "missing.pem")}
	_, err = cfg.tlsConfig()
	assert.Error(t, err)
}

func TestConfigKnownBrokers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.json")
	cfg := Config{URL: "https://broker.local:8443/smq.lsp", KnownHosts: path}

	tc, err := cfg.tlsConfig()
	require.NoError(t, err)
	require.NotNil(t, tc.VerifyConnection)

	cs := tls.ConnectionState{PeerCertificates: []*x509.Certificate{{Raw: []byte("cert")}}}
	require.NoError(t, tc.VerifyConnection(cs))

	known := persistence.NewKnownBrokers(path)
	require.NoError(t, known.Load())
	assert.Equal(t, []string{"broker.local"}, known.Hosts())
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in      string
		want    bridge.Route
		wantErr bool
	}{
		{in: "sensors", want: bridge.Route{SMQTopic: "sensors"}},
		{in: "sensors/temp", want: bridge.Route{SMQTopic: "sensors", Subtopic: "temp"}},
		{in: "sensors=home/sensors", want: bridge.Route{SMQTopic: "sensors", MQTTTopic: "home/sensors"}},
		{in: "sensors/temp=home/t", want: bridge.Route{SMQTopic: "sensors", Subtopic: "temp", MQTTTopic: "home/t"}},
		{in: "", wantErr: true},
		{in: "=home/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRoute(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteFlags(t *testing.T) {
	var r routeFlags
	require.NoError(t, r.Set("a"))
	require.NoError(t, r.Set("b/c=x"))
	assert.Error(t, r.Set(""))
	assert.Len(t, r, 2)
	assert.Equal(t, "a -> a, b[c] -> x", r.String())
}
