package message

import "encoding/json"

// Recognized values of the "type" discriminant. Anything else is relayed
// verbatim and never persisted.
const (
	TypeUserMessage         = "user_message"
	TypeAIResponse          = "ai_response"
	TypePartnerConnected    = "partner_connected"
	TypePartnerDisconnected = "partner_disconnected"
	TypeHistoryRestore      = "history_restore"
)

// Envelope is the decoded view of an inbound frame. Only the discriminant is
// inspected; the rest of the object passes through untouched.
type Envelope struct {
	Type string `json:"type"`
}

// Parse decodes the discriminant of a raw frame.
func Parse(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Persistable reports whether frames of this type belong in the room
// transcript.
func (e Envelope) Persistable() bool {
	return e.Type == TypeUserMessage || e.Type == TypeAIResponse
}

// Server-generated control frames. Presence frames carry only the
// discriminant, so they are built once.
var (
	partnerConnected    = []byte(`{"type":"partner_connected"}`)
	partnerDisconnected = []byte(`{"type":"partner_disconnected"}`)
)

func PartnerConnected() []byte { return partnerConnected }

func PartnerDisconnected() []byte { return partnerDisconnected }

type historyRestore struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HistoryRestore wraps a stored transcript (a JSON array) in a
// history_restore frame for the joining connection.
func HistoryRestore(stored json.RawMessage) ([]byte, error) {
	return json.Marshal(historyRestore{Type: TypeHistoryRestore, Payload: stored})
}
