package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	// Empty means all interfaces.
	Interface string
}

// Browser browses for SMQ brokers.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse streams brokers on all interfaces until ctx is done.
func Browse(ctx context.Context) (<-chan *Broker, error) {
	return NewBrowser(BrowserConfig{}).Browse(ctx)
}

// Browse streams each broker once, when first seen. The channel is closed
// when ctx is done.
func (b *Browser) Browse(ctx context.Context) (<-chan *Broker, error) {
	out := make(chan *Broker)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		brokers := make(map[string]*Broker)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				br := entryToBroker(entry)
				if br == nil {
					continue
				}
				if existing, found := brokers[br.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, br.Addresses)
					continue
				}
				brokers[br.Instance] = br
				select {
				case out <- br:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := brokers[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(brokers, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// Find returns the first broker seen. Without a deadline on ctx it gives
// up after BrowseTimeout.
func (b *Browser) Find(ctx context.Context) (*Broker, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	brokers, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case br, ok := <-brokers:
		if ok {
			return br, nil
		}
	case <-ctx.Done():
	}
	return nil, ErrNotFound
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToBroker converts a zeroconf entry. Entries with an invalid path
// are skipped.
func entryToBroker(entry *zeroconf.ServiceEntry) *Broker {
	path, err := DecodeBrokerPath(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	addrs := entryAddresses(entry)

	host := entry.HostName
	if host == "" {
		if len(addrs) == 0 {
			return nil
		}
		host = addrs[0]
	}
	port := uint16(entry.Port)

	return &Broker{
		Instance:  entry.Instance,
		Host:      host,
		Port:      port,
		Addresses: addrs,
		Path:      path,
		URL:       BrokerURL(host, port, path),
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses appends the addresses of add missing from existing.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range add {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses of entry.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	gone := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		gone[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !gone[addr] {
			result = append(result, addr)
		}
	}
	return result
}
