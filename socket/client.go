package socket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"inkwell/internal/access"
	"inkwell/internal/auth"
	"inkwell/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client runs on a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one live connection. It belongs to at most one document room
// at a time; DocID is guarded by the hub's lock.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	ID       string // connection id
	DocID    string
	UserID   string
	Username string
	// ShareToken presented at join time. Only a reference to the grant:
	// the grant itself is re-checked in the store on every mutation.
	ShareToken string
	Send       chan []byte
}

// ServeWs upgrades the HTTP request to a WebSocket connection. The
// connection starts out unauthenticated and roomless; the client must send
// a JOIN message carrying its credential before anything else works.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:  hub,
		Conn: conn,
		ID:   uuid.NewString(),
		Send: make(chan []byte, 256),
	}
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c.ID)
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			c.sendError("malformed message")
			continue
		}

		// The credential is re-verified on every event. A revoked or
		// expired token stops working on the very next message, not at
		// the next reconnect.
		switch msg.Type {
		case JoinType:
			c.handleJoin(msg)
		case ChangeType:
			c.handleChange(msg)
		case CursorType:
			c.handleCursor(msg)
		case LeaveType:
			c.Hub.Leave(c.ID)
		default:
			c.sendError("unknown message type")
		}
	}
}

func (c *Client) handleJoin(msg WSMessage) {
	ident, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}

	if _, err := c.Hub.Resolver.Resolve(ident, msg.DocID, msg.ShareToken); err != nil {
		logger.Sugar.Warnf("Join rejected for user %s on doc %s: %v", ident.ID, msg.DocID, err)
		c.sendError(accessErrorMessage(err))
		return
	}

	c.ShareToken = msg.ShareToken
	c.Hub.Join(c, msg.DocID, ident)

	joined, err := Envelope(JoinedType, msg.DocID, JoinedEvent{DocID: msg.DocID, User: ident})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling joined event: %v", err)
		return
	}
	c.Send <- joined

	c.Hub.BroadcastPresence(msg.DocID)
}

func (c *Client) handleChange(msg WSMessage) {
	ident, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}

	docID := c.Hub.RoomOf(c.ID)
	if docID == "" || docID != msg.DocID {
		c.sendError("join the document before editing")
		return
	}

	var payload ChangePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.sendError("malformed change payload")
		return
	}

	ack, err := c.Hub.Intake.SubmitChange(docID, ident, payload.Content, c.ShareToken, c.ID)
	if err != nil {
		logger.Sugar.Warnf("Change rejected for user %s on doc %s: %v", ident.ID, docID, err)
		c.sendError(accessErrorMessage(err))
		return
	}

	// The acknowledgement goes to the submitter only; everyone else in the
	// room got the DOCUMENT_UPDATED broadcast from the intake.
	out, err := AckEnvelope(ack)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling change ack: %v", err)
		return
	}
	c.Send <- out
}

func (c *Client) handleCursor(msg WSMessage) {
	ident, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}

	var payload CursorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.sendError("malformed cursor payload")
		return
	}

	docID, ok := c.Hub.UpdateCursor(c.ID, payload.Position)
	if !ok {
		c.sendError("join the document before sending cursor updates")
		return
	}

	event, err := Envelope(CursorUpdateType, docID, CursorUpdateEvent{Position: payload.Position, Author: ident})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling cursor event: %v", err)
		return
	}
	c.Hub.Publish(docID, event, c.ID)
}

func (c *Client) sendError(message string) {
	event, err := Envelope(ErrorType, "", ErrorEvent{Message: message})
	if err != nil {
		return
	}
	select {
	case c.Send <- event:
	default:
		logger.Sugar.Warnf("Dropping error event for lagging client %s", c.ID)
	}
}

func accessErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "invalid token"
	case errors.Is(err, access.ErrNotFound):
		return "document not found"
	case errors.Is(err, access.ErrForbidden):
		return "access denied"
	default:
		return "operation failed"
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Send ping every 30s
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				return // Hub closed the channel on unregister
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
