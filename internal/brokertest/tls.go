package brokertest

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/smq-protocol/smq-go/pkg/transport"
)

// NewTLSServer serves the broker behind a real HTTPS upgrade on a local
// port. The server uses a self-signed certificate and is closed when the
// test ends. Use srv.URL + "/smq.lsp" as the broker URL.
func (b *Broker) NewTLSServer() *httptest.Server {
	srv := httptest.NewTLSServer(http.HandlerFunc(b.handleUpgrade))
	b.t.Cleanup(func() {
		b.Close()
		srv.Close()
	})
	return srv
}

func (b *Broker) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(transport.HeaderSimpleMQ) != "true" {
		http.Error(w, "not an SMQ request", http.StatusBadRequest)
		return
	}
	if b.UpgradeErr != nil {
		http.Error(w, b.UpgradeErr.Error(), http.StatusServiceUnavailable)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		b.t.Error("response writer does not support hijacking")
		return
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		b.t.Errorf("hijack failed: %v", err)
		return
	}

	fmt.Fprintf(rw, "HTTP/1.1 200 OK\r\n%s: 1.0\r\nContent-Length: 0\r\n\r\n", transport.HeaderBroker)
	if err := rw.Flush(); err != nil {
		conn.Close()
		return
	}
	b.attach(conn)
}
