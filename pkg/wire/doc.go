// Package wire defines the binary frame format of the SMQ protocol.
//
// Every frame starts with a 3 byte header:
//
//	+--------+--------+--------+------------------+
//	| length (uint16) |  type  | payload ...      |
//	+--------+--------+--------+------------------+
//
// The length covers the whole frame including the header. Numeric fields
// are 32-bit big-endian unsigned integers. Strings are UTF-8 and are either
// prefixed with a single length byte (client id, credentials) or occupy the
// remainder of the frame (topic names, info, error text).
//
// # Messages
//
// Each frame type maps to a Go struct implementing Message. Encode and
// Decode are symmetric so the same codec serves both the client and test
// brokers.
package wire
