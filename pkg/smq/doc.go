// Package smq implements an SMQ publish/subscribe client.
//
// A Client reaches the broker through an HTTPS upgrade, then speaks the
// binary SMQ protocol over the upgraded stream. Topic and subtopic names
// are resolved to broker-assigned 32-bit IDs on demand; every operation
// that needs an ID queues behind the request that obtains it, so callers
// may publish to a topic name before it has ever been created.
//
// Connection lifecycle:
//
//	Disconnected --Init--> Initiating --Connect--> Connected
//	     ^                                             |
//	     +------------- Close / connection lost -------+
//
// Two goroutines serve a connected client. The sender drains the outbound
// queue in FIFO order and runs the keep-alive check; the receiver reads
// frames and dispatches them. Asynchronous callbacks (acks, messages,
// subscriber changes, close) are handed to the configured Dispatcher.
//
// Basic usage:
//
//	client, err := smq.New(smq.Config{URL: "https://broker.example/smq.lsp"})
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx, []byte("device-1"), "", "demo"); err != nil {
//	    return err
//	}
//	client.Subscribe("sensors/temp", func(msg smq.Message) {
//	    fmt.Println(msg.Text())
//	}, nil)
//	client.PublishString("sensors/temp", "21.5")
package smq
