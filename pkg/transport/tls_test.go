package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTLSConfigNil(t *testing.T) {
	cfg, err := NewClientTLSConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)
}

func TestNewClientTLSConfigRejectsEmptyCertificate(t *testing.T) {
	_, err := NewClientTLSConfig(&TLSConfig{Certificate: &tls.Certificate{}})
	assert.Error(t, err)
}

func TestNewClientTLSConfigBadFingerprint(t *testing.T) {
	_, err := NewClientTLSConfig(&TLSConfig{PinnedFingerprint: "zz"})
	assert.Error(t, err)

	_, err = NewClientTLSConfig(&TLSConfig{PinnedFingerprint: "abcd"})
	assert.Error(t, err)
}

func TestPinnedFingerprint(t *testing.T) {
	srv := newBrokerServer(t, http.StatusOK, true)
	pin := Fingerprint(srv.Certificate().Raw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("match", func(t *testing.T) {
		// Colon separated upper case is accepted too.
		var parts []string
		for i := 0; i < len(pin); i += 2 {
			parts = append(parts, strings.ToUpper(pin[i:i+2]))
		}
		cfg, err := NewClientTLSConfig(&TLSConfig{PinnedFingerprint: strings.Join(parts, ":")})
		require.NoError(t, err)

		conn, err := (&HTTPUpgrader{TLSConfig: cfg}).Upgrade(ctx, srv.URL)
		require.NoError(t, err)
		conn.Close()
	})

	t.Run("mismatch", func(t *testing.T) {
		wrong := strings.Repeat("00", 32)
		cfg, err := NewClientTLSConfig(&TLSConfig{PinnedFingerprint: wrong})
		require.NoError(t, err)

		_, err = (&HTTPUpgrader{TLSConfig: cfg}).Upgrade(ctx, srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fingerprint mismatch")
	})
}

func TestVerifyConnectionHook(t *testing.T) {
	srv := newBrokerServer(t, http.StatusOK, true)
	pin := Fingerprint(srv.Certificate().Raw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seen []string
	cfg, err := NewClientTLSConfig(&TLSConfig{
		VerifyConnection: func(cs tls.ConnectionState) error {
			seen = append(seen, Fingerprint(cs.PeerCertificates[0].Raw))
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	conn, err := (&HTTPUpgrader{TLSConfig: cfg}).Upgrade(ctx, srv.URL)
	require.NoError(t, err)
	conn.Close()
	assert.Equal(t, []string{pin}, seen)

	cfg, err = NewClientTLSConfig(&TLSConfig{
		VerifyConnection: func(tls.ConnectionState) error { return errors.New("rejected") },
	})
	require.NoError(t, err)
	_, err = (&HTTPUpgrader{TLSConfig: cfg}).Upgrade(ctx, srv.URL)
	assert.ErrorContains(t, err, "rejected")
}

func TestLoadCertPool(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCertPool(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = LoadCertPool(bad)
	assert.Error(t, err)
}
