// Package transport provides the SMQ transport layer.
//
// The transport layer handles:
//   - the HTTPS request that upgrades a TLS connection to a raw SMQ stream
//   - 2-byte length-prefixed framing
//   - keepalive bookkeeping for ping/pong liveness checks
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      SMQ Messages              │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (2B)   │
//	├────────────────────────────────┤
//	│   HTTP/1.1 upgrade (once)      │
//	├────────────────────────────────┤
//	│         TLS                    │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// The broker is probed only when the link has been idle:
//   - Ping after 20 minutes without inbound traffic
//   - Pong timeout: 20 seconds
//   - Idle checks run at least every 10 seconds
package transport
