package discovery

import (
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(instance, host string, port int, txt []string, addrs ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.HostName = host
	e.Port = port
	e.Text = txt
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip.To4() != nil {
			e.AddrIPv4 = append(e.AddrIPv4, ip)
		} else {
			e.AddrIPv6 = append(e.AddrIPv6, ip)
		}
	}
	return e
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		port uint16
		path string
		want string
	}{
		{"default port", "broker.local.", 443, "/smq.lsp", "https://broker.local/smq.lsp"},
		{"zero port", "broker.local", 0, "", "https://broker.local/smq.lsp"},
		{"custom port", "broker.local.", 8443, "/bus", "https://broker.local:8443/bus"},
		{"ipv4", "192.0.2.1", 9443, "/smq.lsp", "https://192.0.2.1:9443/smq.lsp"},
		{"ipv6", "fe80::1", 9443, "/smq.lsp", "https://[fe80::1]:9443/smq.lsp"},
		{"ipv6 default port", "fe80::1", 443, "/smq.lsp", "https://[fe80::1]/smq.lsp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BrokerURL(tt.host, tt.port, tt.path))
		})
	}
}

func TestDecodeBrokerPath(t *testing.T) {
	path, err := DecodeBrokerPath(TXTRecordMap{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, path)

	path, err = DecodeBrokerPath(TXTRecordMap{TXTKeyPath: "/iot/smq.lsp"})
	require.NoError(t, err)
	assert.Equal(t, "/iot/smq.lsp", path)

	for _, bad := range []string{"smq.lsp", "/a b", "/x?y"} {
		_, err := DecodeBrokerPath(TXTRecordMap{TXTKeyPath: bad})
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestTXTRecordStrings(t *testing.T) {
	txt := StringsToTXTRecords([]string{"path=/a=b", "flag", ""})
	assert.Equal(t, TXTRecordMap{"path": "/a=b", "flag": ""}, txt)

	assert.Equal(t, []string{"path=/smq.lsp"}, TXTRecordsToStrings(TXTRecordMap{"path": "/smq.lsp"}))
}

func TestEntryToBroker(t *testing.T) {
	e := newEntry("Office", "office.local.", 8443, []string{"path=/bus"}, "192.0.2.7", "fe80::7")

	br := entryToBroker(e)
	require.NotNil(t, br)
	assert.Equal(t, &Broker{
		Instance:  "Office",
		Host:      "office.local.",
		Port:      8443,
		Addresses: []string{"192.0.2.7", "fe80::7"},
		Path:      "/bus",
		URL:       "https://office.local:8443/bus",
	}, br)
}

func TestEntryToBrokerFallsBackToAddress(t *testing.T) {
	br := entryToBroker(newEntry("Lab", "", 443, nil, "192.0.2.9"))
	require.NotNil(t, br)
	assert.Equal(t, "https://192.0.2.9/smq.lsp", br.URL)

	assert.Nil(t, entryToBroker(newEntry("Empty", "", 443, nil)))
	assert.Nil(t, entryToBroker(newEntry("Bad", "h.local.", 443, []string{"path=nope"})))
}

func TestAddressAggregation(t *testing.T) {
	addrs := mergeAddresses([]string{"192.0.2.1"}, []string{"192.0.2.1", "fe80::1"})
	assert.Equal(t, []string{"192.0.2.1", "fe80::1"}, addrs)

	addrs = removeAddresses(addrs, newEntry("x", "", 0, nil, "fe80::1"))
	assert.Equal(t, []string{"192.0.2.1"}, addrs)
}
