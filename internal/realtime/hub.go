// Package realtime fans group chat messages out to websocket clients.
package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	TypeMessage  = "message"
	TypePresence = "presence"
	TypeError    = "error"

	MaxBodyRunes = 2000

	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameBytes     = 16 * 1024
	defaultSendBuffer = 32
)

var ErrInvalidBody = errors.New("message body must be 1..2000 characters")

// Message is the only frame exchanged with clients.
type Message struct {
	Type    string    `json:"type"`
	GroupID string    `json:"group_id"`
	UserID  string    `json:"user_id,omitempty"`
	Body    string    `json:"body,omitempty"`
	Online  *bool     `json:"online,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one connection in a group room.
type Client struct {
	hub     *Hub
	conn    Conn
	groupID string
	userID  string
	send    chan []byte
	closed  bool // guarded by hub.mu
}

func (c *Client) GroupID() string { return c.groupID }
func (c *Client) UserID() string  { return c.userID }

// Hub keeps rooms keyed by group id. A client whose send buffer is full when
// a message arrives is disconnected.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	bufSize int
	logger  *logrus.Logger
	now     func() time.Time
}

func NewHub(logger *logrus.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{rooms: make(map[string]map[*Client]struct{}), bufSize: sendBuffer, logger: logger, now: time.Now}
}

// Join adds conn to the group's room and announces the user.
func (h *Hub) Join(groupID, userID string, conn Conn) *Client {
	c := &Client{hub: h, conn: conn, groupID: groupID, userID: userID, send: make(chan []byte, h.bufSize)}
	h.mu.Lock()
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Debug("chat client joined")
	}
	h.presence(groupID, userID, true)
	return c
}

// Leave removes c from its room. It is safe to call more than once.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	if room, ok := h.rooms[c.groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.groupID)
		}
	}
	close(c.send)
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{"group_id": c.groupID, "user_id": c.userID}).Debug("chat client left")
	}
	h.presence(c.groupID, c.userID, false)
}

func (h *Hub) presence(groupID, userID string, online bool) {
	h.Broadcast(Message{Type: TypePresence, GroupID: groupID, UserID: userID, Online: &online})
}

// Broadcast delivers msg to every client in msg.GroupID.
func (h *Hub) Broadcast(msg Message) {
	if msg.SentAt.IsZero() {
		msg.SentAt = h.now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[msg.GroupID] {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		if h.logger != nil {
			h.logger.WithFields(logrus.Fields{"group_id": c.groupID, "user_id": c.userID}).Warn("chat client too slow, dropping")
		}
		_ = c.conn.Close()
		h.Leave(c)
	}
}

// sendTo queues msg for c only. It reports false when c is gone or full.
func (h *Hub) sendTo(c *Client, msg Message) bool {
	if msg.SentAt.IsZero() {
		msg.SentAt = h.now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Online lists the distinct users connected to a group.
func (h *Hub) Online(groupID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for c := range h.rooms[groupID] {
		if !seen[c.userID] {
			seen[c.userID] = true
			out = append(out, c.userID)
		}
	}
	return out
}

// Shutdown closes every connection; their Serve calls then return.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	var all []*Client
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		_ = c.conn.Close()
	}
}

// ValidateBody trims body and checks its length.
func ValidateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	n := utf8.RuneCountInString(body)
	if n == 0 || n > MaxBodyRunes {
		return "", ErrInvalidBody
	}
	return body, nil
}

// Serve pumps c until the connection fails, then removes it from the hub.
// It blocks until both pumps have stopped.
func (h *Hub) Serve(c *Client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()
	h.Leave(c)
	<-done
}

type inbound struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(c.hub.now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.hub.now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.hub.logger != nil {
				c.hub.logger.WithError(err).WithField("user_id", c.userID).Debug("chat read failed")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.hub.sendTo(c, Message{Type: TypeError, GroupID: c.groupID, Body: "invalid message format"})
			continue
		}
		if in.Type != "" && in.Type != TypeMessage {
			c.hub.sendTo(c, Message{Type: TypeError, GroupID: c.groupID, Body: "unknown message type"})
			continue
		}
		body, err := ValidateBody(in.Body)
		if err != nil {
			c.hub.sendTo(c, Message{Type: TypeError, GroupID: c.groupID, Body: err.Error()})
			continue
		}
		c.hub.Broadcast(Message{Type: TypeMessage, GroupID: c.groupID, UserID: c.userID, Body: body})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(c.hub.now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(c.hub.now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ Conn = (*websocket.Conn)(nil)
