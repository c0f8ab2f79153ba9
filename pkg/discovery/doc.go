// Package discovery finds SMQ brokers on the local network with mDNS/DNS-SD.
//
// Brokers advertise the _smq._tcp service. The TXT record may carry the
// broker path:
//
//	path=/smq.lsp
//
// When it is absent the default path is used. A discovered Broker yields
// the HTTPS URL that smq.Config.URL expects:
//
//	brokers, err := discovery.Browse(ctx)
//	if err != nil {
//		return err
//	}
//	for b := range brokers {
//		fmt.Println(b.Instance, b.URL)
//	}
package discovery
