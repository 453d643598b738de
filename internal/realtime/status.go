package realtime

// Status is the connection state exposed to consumers.
type Status string

// Connection statuses.
const (
	StatusDisconnected    Status = "disconnected"
	StatusConnecting      Status = "connecting"
	StatusConnected       Status = "connected"
	StatusReconnectFailed Status = "reconnect_failed"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusDisconnected, StatusConnecting, StatusConnected, StatusReconnectFailed}
}

// IsTerminal reports whether automatic recovery has stopped.
func (s Status) IsTerminal() bool {
	return s == StatusReconnectFailed
}
