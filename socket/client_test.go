package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/document/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	idents map[string]auth.Identity
}

func (v staticVerifier) Verify(token string) (auth.Identity, error) {
	if ident, ok := v.idents[token]; ok {
		return ident, nil
	}
	return auth.Identity{}, auth.ErrUnauthenticated
}

type allowAllResolver struct{}

func (allowAllResolver) Resolve(ident auth.Identity, docID, shareToken string) (model.Permission, error) {
	return model.PermissionAdmin, nil
}

// fakeIntake mimics the real change intake: persistence is skipped, the
// broadcast and the ack happen the same way.
type fakeIntake struct {
	hub  *Hub
	next int
}

func (f *fakeIntake) SubmitChange(docID string, ident auth.Identity, content, shareToken, originConnID string) (model.ChangeAck, error) {
	f.next++
	event, err := Envelope(DocumentUpdatedType, docID, DocumentUpdatedEvent{Content: content, Author: ident, Timestamp: time.Now()})
	if err != nil {
		return model.ChangeAck{}, err
	}
	f.hub.Publish(docID, event, originConnID)
	return model.ChangeAck{DocID: docID, VersionNumber: f.next, WordCount: 1, ReadingTime: 1, UpdatedAt: time.Now()}, nil
}

// readMessage reads one envelope off the connection with a deadline so
// tests never hang.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	return decodeEnvelope(t, p)
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestSocketIntegration(t *testing.T) {
	verifier := staticVerifier{idents: map[string]auth.Identity{
		"token-alice": {ID: "user-alice", Username: "alice"},
		"token-bob":   {ID: "user-bob", Username: "bob"},
	}}
	hub := NewHub(verifier, allowAllResolver{})
	hub.Intake = &fakeIntake{hub: hub}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	docID := "notes"

	// Client 1 joins.
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	writeMessage(t, conn1, WSMessage{Type: JoinType, DocID: docID, Token: "token-alice"})

	joined := readMessage(t, conn1)
	assert.Equal(t, JoinedType, joined.Type)
	var joinedEvent JoinedEvent
	require.NoError(t, json.Unmarshal(joined.Payload, &joinedEvent))
	assert.Equal(t, "user-alice", joinedEvent.User.ID)

	presence := readMessage(t, conn1)
	assert.Equal(t, PresenceType, presence.Type)

	// Client 2 joins the same room.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	writeMessage(t, conn2, WSMessage{Type: JoinType, DocID: docID, Token: "token-bob"})
	_ = readMessage(t, conn2) // JOINED
	_ = readMessage(t, conn2) // PRESENCE

	// Client 1 sees the membership change.
	presence = readMessage(t, conn1)
	assert.Equal(t, PresenceType, presence.Type)
	var statuses []UserStatus
	require.NoError(t, json.Unmarshal(presence.Payload, &statuses))
	assert.Len(t, statuses, 2, "Should be two users in the room")

	// Client 2 submits a change: client 1 gets the broadcast, client 2
	// gets the ack and nothing else.
	payload, _ := json.Marshal(ChangePayload{Content: "v2"})
	writeMessage(t, conn2, WSMessage{Type: ChangeType, DocID: docID, Token: "token-bob", Payload: payload})

	update := readMessage(t, conn1)
	assert.Equal(t, DocumentUpdatedType, update.Type)
	var updateEvent DocumentUpdatedEvent
	require.NoError(t, json.Unmarshal(update.Payload, &updateEvent))
	assert.Equal(t, "v2", updateEvent.Content)
	assert.Equal(t, "user-bob", updateEvent.Author.ID)

	ack := readMessage(t, conn2)
	assert.Equal(t, ChangeAckType, ack.Type)
	var changeAck model.ChangeAck
	require.NoError(t, json.Unmarshal(ack.Payload, &changeAck))
	assert.Equal(t, 1, changeAck.VersionNumber)

	// Cursor moves relay to the other member only.
	cursorPayload, _ := json.Marshal(CursorPayload{Position: 7})
	writeMessage(t, conn2, WSMessage{Type: CursorType, DocID: docID, Token: "token-bob", Payload: cursorPayload})

	cursor := readMessage(t, conn1)
	assert.Equal(t, CursorUpdateType, cursor.Type)
	var cursorEvent CursorUpdateEvent
	require.NoError(t, json.Unmarshal(cursor.Payload, &cursorEvent))
	assert.Equal(t, 7, cursorEvent.Position)
	assert.Equal(t, "user-bob", cursorEvent.Author.ID)
}

func TestSocketRejectsBadToken(t *testing.T) {
	hub := NewHub(staticVerifier{}, allowAllResolver{})
	hub.Intake = &fakeIntake{hub: hub}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	writeMessage(t, conn, WSMessage{Type: JoinType, DocID: "notes", Token: "forged"})

	msg := readMessage(t, conn)
	assert.Equal(t, ErrorType, msg.Type)
	var errEvent ErrorEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &errEvent))
	assert.Equal(t, "invalid token", errEvent.Message)
}

func TestSocketChangeRequiresJoin(t *testing.T) {
	verifier := staticVerifier{idents: map[string]auth.Identity{
		"token-alice": {ID: "user-alice", Username: "alice"},
	}}
	hub := NewHub(verifier, allowAllResolver{})
	hub.Intake = &fakeIntake{hub: hub}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, _ := json.Marshal(ChangePayload{Content: "sneaky"})
	writeMessage(t, conn, WSMessage{Type: ChangeType, DocID: "notes", Token: "token-alice", Payload: payload})

	msg := readMessage(t, conn)
	assert.Equal(t, ErrorType, msg.Type)
}
