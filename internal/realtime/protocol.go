package realtime

import "encoding/json"

// FrameType distinguishes named events from acknowledgements.
type FrameType string

// Frame types.
const (
	// FrameEvent carries a named event. When sent by the client with an
	// AckID, the server answers with a FrameAck carrying the same id.
	FrameEvent FrameType = "event"
	// FrameAck answers a client event that requested acknowledgement.
	FrameAck FrameType = "ack"
)

// Frame is a single JSON text message on the WebSocket.
type Frame struct {
	Type  FrameType       `json:"type"`
	Event string          `json:"event,omitempty"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the payload of a named event.
type Handler func(data json.RawMessage)

// AckFunc receives the payload of an acknowledgement. It is invoked at
// most once.
type AckFunc func(data json.RawMessage)

// StatusListener observes status transitions.
type StatusListener func(Status)
