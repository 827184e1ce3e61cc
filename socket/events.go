package socket

import (
	"encoding/json"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/document/model"
)

// Inbound message types.
const (
	JoinType   = "JOIN"   // enter a document room
	ChangeType = "CHANGE" // submit a content change
	CursorType = "CURSOR" // cursor moved
	LeaveType  = "LEAVE"  // leave the current room
)

// Outbound message types. This is the closed set of event variants the
// server ever emits; payload shapes are fixed per type.
const (
	JoinedType          = "JOINED"           // join acknowledged, sent to the joiner only
	ChangeAckType       = "CHANGE_ACK"       // change persisted, sent to the submitter only
	DocumentUpdatedType = "DOCUMENT_UPDATED" // another member changed the content
	CursorUpdateType    = "CURSOR_UPDATE"    // another member moved their cursor
	PresenceType        = "PRESENCE"         // room membership snapshot
	ErrorType           = "ERROR"            // operation rejected, sent to the offender only
)

// WSMessage is the wire envelope in both directions. The credential rides
// on every inbound message and is re-verified each time.
type WSMessage struct {
	Type       string          `json:"type"`
	DocID      string          `json:"document_id,omitempty"`
	Token      string          `json:"token,omitempty"`
	ShareToken string          `json:"share_token,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type ChangePayload struct {
	Content string `json:"content"`
}

type CursorPayload struct {
	Position int `json:"position"`
}

type JoinedEvent struct {
	DocID string        `json:"document_id"`
	User  auth.Identity `json:"user"`
}

type DocumentUpdatedEvent struct {
	Content   string        `json:"content"`
	Author    auth.Identity `json:"author"`
	Timestamp time.Time     `json:"timestamp"`
}

type CursorUpdateEvent struct {
	Position int           `json:"position"`
	Author   auth.Identity `json:"author"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// UserStatus is one room member's presence entry.
type UserStatus struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CursorPos int       `json:"cursor_pos"`
	LastSeen  time.Time `json:"last_seen"`
}

// Envelope marshals payload into a WSMessage of the given type.
func Envelope(msgType, docID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, DocID: docID, Payload: raw})
}

// AckEnvelope wraps a persisted-change acknowledgement for the submitter.
func AckEnvelope(ack model.ChangeAck) ([]byte, error) {
	return Envelope(ChangeAckType, ack.DocID, ack)
}
