package smq

// State is the client connection state.
type State uint8

const (
	// StateDisconnected means no broker connection exists.
	StateDisconnected State = iota

	// StateInitiating means the upgrade succeeded and INIT was received;
	// Connect has not completed yet.
	StateInitiating

	// StateConnected means the broker accepted the CONNECT.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateInitiating:
		return "INITIATING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
