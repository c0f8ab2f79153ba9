package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of SMQ brokers.
	ServiceType = "_smq._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPath is the broker resource used when the TXT record has no path.
	DefaultPath = "/smq.lsp"

	// DefaultPort is the HTTPS port.
	DefaultPort = 443

	// BrowseTimeout bounds Find when the context has no deadline.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys.
const (
	TXTKeyPath = "path"
)

// Discovery errors.
var (
	ErrNotFound    = errors.New("no broker found")
	ErrInvalidPath = errors.New("invalid broker path")
)

// Broker is a discovered SMQ broker. Addresses from several interfaces
// are merged into one entry per instance.
type Broker struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
	Path      string

	// URL is the HTTPS URL of the broker resource.
	URL string
}

// BrokerURL builds the HTTPS URL for host, port and path. The port is
// left out when it is the HTTPS default.
func BrokerURL(host string, port uint16, path string) string {
	host = strings.TrimSuffix(host, ".")
	if port != 0 && port != DefaultPort {
		host = net.JoinHostPort(host, strconv.Itoa(int(port)))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{Scheme: "https", Host: host, Path: path}
	return u.String()
}
