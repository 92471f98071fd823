package websocket

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lorrc/workload-insights/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1024
	sendBuffer     = 256
)

// Client is one dashboard connection. The hub writes events to send; the
// write loop drains it onto the socket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan domain.Event

	EmployeeID int64
	Role       string

	// canSeeAll lets leads and admins join any room.
	canSeeAll bool

	mu    sync.RWMutex
	rooms map[string]struct{}

	closeOnce sync.Once
	logger    *slog.Logger
}

// NewClient creates a client for an authenticated caller.
func NewClient(hub *Hub, conn *websocket.Conn, employeeID int64, role string, canSeeAll bool, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan domain.Event, sendBuffer),
		EmployeeID: employeeID,
		Role:       role,
		canSeeAll:  canSeeAll,
		rooms:      make(map[string]struct{}),
		logger:     logger.With("employee_id", employeeID),
	}
}

// Start runs the read and write loops. The read loop unregisters the client
// when the peer goes away.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

func (c *Client) ownRoom() string {
	return string(domain.EntityEmployee) + ":" + strconv.FormatInt(c.EmployeeID, 10)
}

// defaultRooms are joined on connect. Leads get every alert; everyone gets
// the alerts about themselves.
func (c *Client) defaultRooms() []string {
	if c.canSeeAll {
		return []string{domain.AlertsRoom, c.ownRoom()}
	}
	return []string{c.ownRoom()}
}

func (c *Client) mayJoin(room string) bool {
	switch {
	case room == "":
		return false
	case c.canSeeAll:
		return true
	default:
		return room == c.ownRoom()
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// offer queues ev without blocking and reports whether it fit.
func (c *Client) offer(ev domain.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) joined(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) left(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// HasSubscription reports whether the client is in room.
func (c *Client) HasSubscription(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Subscriptions returns the client's rooms, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()
	slices.Sort(rooms)
	return rooms
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(""); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handleIncomingMessage(data)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("websocket write failed", "event_type", ev.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// ClientMessage is a control frame sent by the dashboard, e.g.
// {"type":"SUBSCRIBE","payload":{"room":"alerts:critical"}}.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomPayload names the room of a SUBSCRIBE or UNSUBSCRIBE frame.
type RoomPayload struct {
	Room string `json:"room"`
}

const eventPong domain.EventType = "PONG"

func (c *Client) handleIncomingMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case "PING":
		c.offer(domain.Event{Type: eventPong})
	case "SUBSCRIBE", "UNSUBSCRIBE":
		var p RoomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.logger.Warn("malformed room payload", "type", msg.Type, "error", err)
			return
		}
		room := strings.TrimSpace(p.Room)
		if msg.Type == "UNSUBSCRIBE" {
			c.hub.unsubscribe(c, room)
			return
		}
		if !c.mayJoin(room) {
			c.logger.Warn("subscription refused", "room", room)
			return
		}
		c.hub.subscribe(c, room)
	default:
		c.logger.Debug("unknown client message", "type", msg.Type)
	}
}
