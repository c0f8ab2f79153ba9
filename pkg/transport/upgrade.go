package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Upgrade request and response headers.
const (
	HeaderSimpleMQ     = "SimpleMQ"
	HeaderSendResponse = "SendSmqHttpResponse"
	HeaderBroker       = "SmqBroker"
)

// Upgrade errors.
var (
	// ErrNotABroker indicates the response lacked the SmqBroker header.
	ErrNotABroker = errors.New("URL is not an SMQ broker")

	// ErrNonOKResponse indicates the broker answered with a non-200 status.
	ErrNonOKResponse = errors.New("broker returned non-OK status")

	// ErrTLSRequired indicates a plaintext URL while plaintext is disabled.
	ErrTLSRequired = errors.New("broker URL must use https")

	// ErrInvalidURL indicates an unparsable broker URL.
	ErrInvalidURL = errors.New("invalid broker URL")
)

// Upgrader turns a broker URL into a raw duplex SMQ stream.
type Upgrader interface {
	// Upgrade performs the HTTP upgrade and returns the connection
	// positioned at the first SMQ frame.
	Upgrade(ctx context.Context, brokerURL string) (net.Conn, error)
}

// HTTPUpgrader performs the upgrade with an HTTP/1.1 GET request over TLS.
type HTTPUpgrader struct {
	// TLSConfig is cloned for each dial. Nil uses NewClientTLSConfig(nil).
	TLSConfig *tls.Config

	// Dialer is used for the TCP connection. Nil uses a zero Dialer.
	Dialer *net.Dialer

	// Header holds extra request headers, e.g. cookies.
	Header http.Header

	// AllowPlaintext permits http:// URLs. Only for local testing.
	AllowPlaintext bool
}

// aLongTimeAgo is a non-zero deadline in the past used to abort I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Upgrade implements Upgrader.
func (u *HTTPUpgrader) Upgrade(ctx context.Context, brokerURL string) (net.Conn, error) {
	target, err := url.Parse(brokerURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, brokerURL)
	}

	useTLS := true
	switch target.Scheme {
	case "https":
	case "http":
		if !u.AllowPlaintext {
			return nil, ErrTLSRequired
		}
		useTLS = false
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, target.Scheme)
	}

	addr := target.Host
	if target.Port() == "" {
		port := DefaultHTTPSPort
		if !useTLS {
			port = "80"
		}
		addr = net.JoinHostPort(target.Hostname(), port)
	}

	dialer := u.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	conn := raw
	if useTLS {
		tlsConf := u.TLSConfig
		if tlsConf == nil {
			tlsConf, _ = NewClientTLSConfig(nil)
		}
		tlsConf = tlsConf.Clone()
		if tlsConf.ServerName == "" {
			tlsConf.ServerName = target.Hostname()
		}
		tlsConn := tls.Client(raw, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	// Abort the exchange if ctx is cancelled mid-way.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	br, err := u.exchange(ctx, conn, target)
	if !stop() || err != nil {
		conn.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &bufferedConn{Conn: conn, r: br}, nil
}

func (u *HTTPUpgrader) exchange(ctx context.Context, conn net.Conn, target *url.URL) (*bufio.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	for k, vs := range u.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(HeaderSimpleMQ, "true")
	req.Header.Set(HeaderSendResponse, "true")

	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("failed to write upgrade request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("failed to read upgrade response: %w", err)
	}

	// The body must not be closed: without a length it would be drained
	// until EOF, swallowing the SMQ stream.
	if resp.ContentLength > 0 {
		if _, err := io.CopyN(io.Discard, resp.Body, resp.ContentLength); err != nil {
			return nil, fmt.Errorf("failed to read upgrade response body: %w", err)
		}
	}

	// Presence is enough; the value is not checked.
	if _, ok := resp.Header[http.CanonicalHeaderKey(HeaderBroker)]; !ok {
		return nil, ErrNotABroker
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrNonOKResponse, resp.Status)
	}
	return br, nil
}

// bufferedConn serves reads from the reader that parsed the HTTP response,
// so frames already buffered behind the headers are not lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// Compile-time interface satisfaction check.
var _ Upgrader = (*HTTPUpgrader)(nil)
