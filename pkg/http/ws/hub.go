package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and broadcasts messages to session
// participants. Sessions are keyed by their shareable code, participants by
// the id minted into their token.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // participant_id -> connection
	sessions    map[string][]uuid.UUID    // session code -> []participant_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		sessions:    make(map[string][]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a participant. A reconnecting
// participant displaces their previous connection.
func (h *Hub) RegisterConnection(participantID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[participantID]; exists {
		old.Close()
	}

	h.connections[participantID] = conn
	h.logger.Info().Str("participant_id", participantID.String()).Msg("connection registered")
}

// UnregisterConnection removes a connection and detaches the participant from
// every session. Only the connection that is actually registered is removed:
// a displaced connection's teardown must not unregister the replacement that
// took its slot.
func (h *Hub) UnregisterConnection(participantID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[participantID]
	if !exists || current != conn {
		return
	}

	current.Close()
	delete(h.connections, participantID)
	h.logger.Info().Str("participant_id", participantID.String()).Msg("connection unregistered")

	for code, participants := range h.sessions {
		for i, pid := range participants {
			if pid == participantID {
				h.sessions[code] = append(participants[:i], participants[i+1:]...)
				break
			}
		}
		if len(h.sessions[code]) == 0 {
			delete(h.sessions, code)
		}
	}
}

// JoinSession associates a participant with a session for targeted broadcasts.
func (h *Hub) JoinSession(code string, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	participants := h.sessions[code]
	for _, pid := range participants {
		if pid == participantID {
			return // already joined
		}
	}
	h.sessions[code] = append(participants, participantID)
}

// LeaveSession removes a participant from a session.
func (h *Hub) LeaveSession(code string, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	participants := h.sessions[code]
	for i, pid := range participants {
		if pid == participantID {
			h.sessions[code] = append(participants[:i], participants[i+1:]...)
			break
		}
	}
}

// SessionParticipants returns the participants currently attached to a session.
func (h *Hub) SessionParticipants(code string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]uuid.UUID(nil), h.sessions[code]...)
}

// BroadcastToSession sends a message to every participant in a session.
func (h *Hub) BroadcastToSession(code string, msg Message) error {
	h.mu.RLock()
	participants := append([]uuid.UUID(nil), h.sessions[code]...)
	h.mu.RUnlock()

	var firstErr error
	for _, pid := range participants {
		if err := h.SendToParticipant(pid, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToParticipant delivers a message to a specific participant.
func (h *Hub) SendToParticipant(participantID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[participantID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(msg)
}

// GetConnection retrieves a connection for a participant.
func (h *Hub) GetConnection(participantID uuid.UUID) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.connections[participantID]
	return conn, exists
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends messages from the send queue.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	// Set read deadline to 60 seconds, extend on pong
	readDeadline := time.Now().Add(60 * time.Second)
	c.conn.SetReadDeadline(readDeadline)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Participant connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
