// Package log provides structured protocol capture for SMQ connections.
//
// It is separate from operational logging (slog): a protocol log is a
// complete machine-readable trace of every frame, decoded message and
// connection state change, intended for offline debugging.
//
// # Basic Usage
//
//	// Console while developing
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/smq/client.smqlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded SMQ messages (MessageEvent)
//   - Client: connection lifecycle (StateChangeEvent)
//
// PING, PONG and DISCONNECT additionally produce ControlMsgEvent values.
//
// # File Format
//
// Files are a plain sequence of CBOR encoded events with integer keys.
// The smq-log tool views and summarizes them.
package log
