// Package capture implements the message-to-record workflow: a message
// shortcut opens a modal backed by live document store queries, and
// submission creates a linked record seeded from the message.
package capture

import (
	"encoding/json"
	"fmt"
)

// InteractionContext is the state carried between interaction round trips.
// There is no session affinity between events, so everything a later step
// needs rides inside the modal's private_metadata as JSON. Option handlers
// only read it; the database id is set when the user picks a database
// (view rebuild) and adopted once more at submission.
type InteractionContext struct {
	ChannelID   string `json:"channel_id"`
	MessageTS   string `json:"message_ts"`
	MessageText string `json:"message_text"`
	DatabaseID  string `json:"database_id,omitempty"`
}

// Encode serializes the context for embedding in a view.
func (c InteractionContext) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("capture: encode context: %w", err)
	}
	return string(data), nil
}

// DecodeContext parses a context previously produced by Encode.
func DecodeContext(s string) (InteractionContext, error) {
	var c InteractionContext
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return InteractionContext{}, fmt.Errorf("capture: decode context: %w", err)
	}
	return c, nil
}
