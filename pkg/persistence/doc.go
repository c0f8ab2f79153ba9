// Package persistence stores client state that must survive restarts.
//
// KnownBrokers records the certificate fingerprint of every broker the
// client has connected to and rejects a broker whose certificate changes
// later (trust on first use). The state is a versioned JSON file.
package persistence
