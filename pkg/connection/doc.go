// Package connection keeps an SMQ client connected.
//
// An SMQ client never reconnects on its own: a lost connection is reported
// once through the client's close callback, together with all broker
// state (topic IDs, subscriptions, observers) being discarded. Manager
// turns that report into reconnection attempts and tells the application
// when to restore its subscriptions.
//
// # Reconnection Strategy
//
// After a loss the manager waits with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Doubling: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds, repeated until successful
//  4. Reset to 1s after a successful connect
//
// # Jitter
//
// Brokers restarting drop every client at once. To spread the
// reconnects:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Giving Up
//
// Errors exposing a Retryable() bool method are consulted before each
// retry. A broker-ordered disconnect or rejected credentials stop the
// loop; the manager returns to Disconnected and reports the error through
// OnGiveUp. Errors without that method are treated as transient.
package connection
