package persistence

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StateVersion is the current version of the known brokers file format.
const StateVersion = 1

// Verification errors.
var (
	// ErrFingerprintMismatch indicates the broker presented a certificate
	// other than the one recorded on first use.
	ErrFingerprintMismatch = errors.New("broker certificate changed")

	// ErrNoCertificate indicates the broker presented no certificate.
	ErrNoCertificate = errors.New("broker presented no certificate")

	// ErrUnsupportedVersion indicates a state file written by a newer release.
	ErrUnsupportedVersion = errors.New("unsupported state file version")
)

// KnownBrokersState is the on-disk form of the known brokers file.
type KnownBrokersState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Brokers maps a broker host name to its recorded certificate.
	Brokers map[string]KnownBroker `json:"brokers,omitempty"`
}

// KnownBroker is the recorded certificate of one broker.
type KnownBroker struct {
	// Fingerprint is the hex SHA-256 of the leaf certificate.
	Fingerprint string `json:"fingerprint"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// KnownBrokers is a trust-on-first-use certificate store backed by a JSON
// file. It is safe for concurrent use.
type KnownBrokers struct {
	mu      sync.Mutex
	path    string
	brokers map[string]KnownBroker

	// now is replaceable in tests.
	now func() time.Time
}

// NewKnownBrokers creates a store backed by path. Call Load to read
// existing entries.
func NewKnownBrokers(path string) *KnownBrokers {
	return &KnownBrokers{
		path:    path,
		brokers: make(map[string]KnownBroker),
		now:     time.Now,
	}
}

// Load reads the file. A missing file leaves the store empty.
func (k *KnownBrokers) Load() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := os.ReadFile(k.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var state KnownBrokersState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse %s: %w", k.path, err)
	}
	if state.Version > StateVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}

	k.brokers = make(map[string]KnownBroker, len(state.Brokers))
	for host, b := range state.Brokers {
		k.brokers[host] = b
	}
	return nil
}

// Save writes the file, creating its directory if needed.
func (k *KnownBrokers) Save() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.saveLocked()
}

func (k *KnownBrokers) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return err
	}

	state := KnownBrokersState{
		Version: StateVersion,
		SavedAt: k.now(),
		Brokers: k.brokers,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write then rename so a crash never leaves a truncated file.
	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, k.path)
}

// Get returns the recorded certificate of host.
func (k *KnownBrokers) Get(host string) (KnownBroker, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.brokers[host]
	return b, ok
}

// Hosts returns the known host names in sorted order.
func (k *KnownBrokers) Hosts() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	hosts := make([]string, 0, len(k.brokers))
	for h := range k.brokers {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Forget removes host so the next connection records it again.
func (k *KnownBrokers) Forget(host string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.brokers[host]; !ok {
		return nil
	}
	delete(k.brokers, host)
	return k.saveLocked()
}

// Check compares fingerprint with the one recorded for host. An unknown
// host is recorded and saved.
func (k *KnownBrokers) Check(host, fingerprint string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.brokers[host]
	if !ok {
		k.brokers[host] = KnownBroker{Fingerprint: fingerprint, FirstSeen: now, LastSeen: now}
		return k.saveLocked()
	}
	if b.Fingerprint != fingerprint {
		return fmt.Errorf("%w: %s presented %s, recorded %s", ErrFingerprintMismatch, host, fingerprint, b.Fingerprint)
	}
	b.LastSeen = now
	k.brokers[host] = b
	return nil
}

// Verifier returns a tls.Config.VerifyConnection callback that checks
// the peer's leaf certificate against the entry of host.
func (k *KnownBrokers) Verifier(host string) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return ErrNoCertificate
		}
		sum := sha256.Sum256(cs.PeerCertificates[0].Raw)
		return k.Check(host, hex.EncodeToString(sum[:]))
	}
}
