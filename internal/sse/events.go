package sse

import (
	"encoding/json"

	"github.com/paircast/relay/internal/protocol"
)

// NewUpdateEvent wraps a relayed message body for receivers. The body is
// nested under a "body" key rather than sent bare so every event's Data is
// a JSON object.
func NewUpdateEvent(body string) Event {
	data, _ := json.Marshal(map[string]string{"body": body})
	return Event{Type: protocol.TypeUpdate, Data: data}
}

// NewShowCodeEvent tells receivers to present the pairing target for 'code'.
func NewShowCodeEvent(code string) Event {
	data, _ := json.Marshal(map[string]string{"code": code})
	return Event{Type: protocol.TypeShowCode, Data: data}
}

// NewHideCodeEvent tells receivers to clear and hide the pairing target.
func NewHideCodeEvent() Event {
	return Event{Type: protocol.TypeHideCode}
}
