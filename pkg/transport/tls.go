package transport

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// DefaultHTTPSPort is used when the broker URL has no explicit port.
const DefaultHTTPSPort = "443"

// TLSConfig holds configuration for SMQ broker connections.
type TLSConfig struct {
	// RootCAs is the pool of trusted CA certificates.
	// Nil uses the host's root set.
	RootCAs *x509.CertPool

	// Certificate is an optional client certificate for brokers that
	// require client authentication.
	Certificate *tls.Certificate

	// ServerName overrides the name used for SNI and verification.
	ServerName string

	// PinnedFingerprint is an optional hex SHA-256 fingerprint of the
	// broker's leaf certificate. When set, the chain is not verified
	// against RootCAs; only the fingerprint is checked.
	PinnedFingerprint string

	// VerifyConnection, when set, replaces chain and hostname
	// verification, e.g. with a trust-on-first-use check.
	VerifyConnection func(tls.ConnectionState) error

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// NewClientTLSConfig creates a TLS configuration for connecting to a broker.
// A nil cfg yields a config that verifies against the host's root set.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
	}
	if cfg == nil {
		return tlsConfig, nil
	}

	tlsConfig.RootCAs = cfg.RootCAs
	tlsConfig.ServerName = cfg.ServerName
	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify
	if cfg.Certificate != nil {
		if len(cfg.Certificate.Certificate) == 0 {
			return nil, fmt.Errorf("client certificate is empty")
		}
		tlsConfig.Certificates = []tls.Certificate{*cfg.Certificate}
	}

	if cfg.VerifyConnection != nil {
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyConnection = cfg.VerifyConnection
	}

	if cfg.PinnedFingerprint != "" {
		want, err := parseFingerprint(cfg.PinnedFingerprint)
		if err != nil {
			return nil, err
		}
		// Hostname and chain checks are replaced by the pin.
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("no certificates presented")
			}
			got := sha256.Sum256(rawCerts[0])
			if !bytes.Equal(got[:], want) {
				return fmt.Errorf("certificate fingerprint mismatch: got %x", got)
			}
			return nil
		}
	}

	return tlsConfig, nil
}

// Fingerprint returns the hex SHA-256 fingerprint of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

func parseFingerprint(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.ToLower(s), ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint: %w", err)
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("invalid fingerprint length %d", len(b))
	}
	return b, nil
}

// LoadCertPool reads PEM encoded CA certificates from the given files.
func LoadCertPool(paths ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, p := range paths {
		pem, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", p)
		}
	}
	return pool, nil
}
