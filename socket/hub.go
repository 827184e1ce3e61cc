package socket

import (
	"sync"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/document/model"
	"inkwell/pkg/logger"
)

// CredentialVerifier re-derives an identity from a raw credential. It is
// consulted on every inbound event, never cached per connection.
type CredentialVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// AccessResolver decides the permission an identity holds on a document.
type AccessResolver interface {
	Resolve(ident auth.Identity, docID, shareToken string) (model.Permission, error)
}

// ChangeIntake persists a submitted change and fans it out to the room.
type ChangeIntake interface {
	SubmitChange(docID string, ident auth.Identity, content, shareToken, originConnID string) (model.ChangeAck, error)
}

// Hub is the session registry and broadcast router. It maps each open
// document to the set of connected clients and relays events between them.
// One Hub is constructed in main and injected everywhere it is needed.
type Hub struct {
	Verifier CredentialVerifier
	Resolver AccessResolver
	// Intake is set after construction, once the document service exists.
	Intake ChangeIntake

	mu       sync.Mutex
	rooms    map[string]map[*Client]bool
	conns    map[string]*Client
	presence map[string]map[string]UserStatus // docID -> userID -> status
}

func NewHub(verifier CredentialVerifier, resolver AccessResolver) *Hub {
	return &Hub{
		Verifier: verifier,
		Resolver: resolver,
		rooms:    make(map[string]map[*Client]bool),
		conns:    make(map[string]*Client),
		presence: make(map[string]map[string]UserStatus),
	}
}

// Register tracks a newly opened connection. The connection is not in any
// room until it joins a document.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

// Unregister drops the connection entirely: it leaves its room (if any)
// and its send channel is closed. Safe to call once per connection.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	var docID string
	if ok {
		docID = c.DocID
		h.removeFromRoomLocked(c)
		delete(h.conns, connID)
		close(c.Send)
	}
	h.mu.Unlock()

	if docID != "" {
		h.BroadcastPresence(docID)
	}
}

// Join binds the connection to a document room. A connection already in a
// different room is moved: after Join it is a member of exactly one room.
func (h *Hub) Join(c *Client, docID string, ident auth.Identity) {
	h.mu.Lock()
	prev := c.DocID
	if prev != "" && prev != docID {
		h.removeFromRoomLocked(c)
	}

	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Client]bool)
		h.presence[docID] = make(map[string]UserStatus)
	}
	h.rooms[docID][c] = true
	c.DocID = docID
	c.UserID = ident.ID
	c.Username = ident.Username
	h.presence[docID][ident.ID] = UserStatus{UserID: ident.ID, Username: ident.Username, LastSeen: time.Now()}
	h.mu.Unlock()

	if prev != "" && prev != docID {
		h.BroadcastPresence(prev)
	}
}

// Leave removes the connection from its current room. Calling it for an
// unknown or already-removed connection is a no-op.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	var docID string
	if ok && c.DocID != "" {
		docID = c.DocID
		h.removeFromRoomLocked(c)
	}
	h.mu.Unlock()

	if docID != "" {
		h.BroadcastPresence(docID)
	}
}

// removeFromRoomLocked detaches c from its room and cleans up the room
// entry synchronously when the last member departs. Caller holds h.mu.
func (h *Hub) removeFromRoomLocked(c *Client) {
	docID := c.DocID
	if docID == "" {
		return
	}
	if room, ok := h.rooms[docID]; ok {
		delete(room, c)
		if users, ok := h.presence[docID]; ok {
			delete(users, c.UserID)
		}
		if len(room) == 0 {
			delete(h.rooms, docID)
			delete(h.presence, docID)
			logger.Sugar.Infof("Closed and cleaned up empty room: %s", docID)
		}
	}
	c.DocID = ""
}

// RoomOf returns the document the connection is currently joined to, or ""
// if it is not in any room.
func (h *Hub) RoomOf(connID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		return c.DocID
	}
	return ""
}

// MembersOf returns a snapshot of the room's clients, excluding the given
// connection.
func (h *Hub) MembersOf(docID, excludeConnID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := make([]*Client, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		if c.ID != excludeConnID {
			members = append(members, c)
		}
	}
	return members
}

// Publish delivers event to every member of the room except the
// originator. Delivery is fire-and-forget: a recipient whose send buffer
// is full has the event dropped with a log line, and never blocks or fails
// the publish for anyone else. The sends happen under the registry lock so
// they cannot race an Unregister closing the channel; they are non-blocking,
// so the lock is never held for I/O.
func (h *Hub) Publish(docID string, event []byte, excludeConnID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[docID] {
		if c.ID == excludeConnID {
			continue
		}
		select {
		case c.Send <- event:
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full, dropping event for doc %s", c.UserID, docID)
		}
	}
}

// UpdateCursor records the connection's cursor offset and reports which
// room it belongs to.
func (h *Hub) UpdateCursor(connID string, position int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok || c.DocID == "" {
		return "", false
	}
	if users, ok := h.presence[c.DocID]; ok {
		users[c.UserID] = UserStatus{UserID: c.UserID, Username: c.Username, CursorPos: position, LastSeen: time.Now()}
	}
	return c.DocID, true
}

// PresenceSnapshot lists the room's members and their last known cursors.
func (h *Hub) PresenceSnapshot(docID string) []UserStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	statuses := make([]UserStatus, 0, len(h.presence[docID]))
	for _, status := range h.presence[docID] {
		statuses = append(statuses, status)
	}
	return statuses
}

// BroadcastPresence pushes the current membership snapshot to everyone in
// the room.
func (h *Hub) BroadcastPresence(docID string) {
	snapshot := h.PresenceSnapshot(docID)
	if len(snapshot) == 0 {
		return
	}
	event, err := Envelope(PresenceType, docID, snapshot)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	h.Publish(docID, event, "")
}

// RemoveDocument force-closes every connection in the document's room and
// drops the room. Called when the document is deleted through the API.
func (h *Hub) RemoveDocument(docID string) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		clients = append(clients, c)
		c.DocID = ""
	}
	delete(h.rooms, docID)
	delete(h.presence, docID)
	h.mu.Unlock()

	// Closing the socket makes each readPump exit and unregister safely.
	for _, c := range clients {
		if c.Conn != nil {
			c.Conn.Close()
		}
	}
}
