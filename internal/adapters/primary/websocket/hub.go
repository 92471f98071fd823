package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

// Hub tracks connected clients and routes alert events to the rooms they
// joined. Register, Unregister and queued events are handled by Run; room
// changes from client frames take the lock directly.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	events     chan domain.Event

	mu sync.RWMutex
	// byEmployee holds every connection of an employee (tabs, devices).
	byEmployee map[int64]map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}

	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates an idle hub. Start it with Run.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan domain.Event, sendBuffer),
		byEmployee: make(map[int64]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for delivery. A full queue drops the event; the
// alert itself is already stored.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("event queue full, dropping event",
			"event_type", event.Type,
			"rooms", event.Rooms,
		)
	}
	return nil
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.byEmployee[c.EmployeeID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.byEmployee[c.EmployeeID] = conns
	}
	conns[c] = struct{}{}
	for _, room := range c.defaultRooms() {
		h.joinLocked(c, room)
	}

	h.logger.Info("client connected",
		"employee_id", c.EmployeeID,
		"connections", len(conns),
	)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	conns, ok := h.byEmployee[c.EmployeeID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.byEmployee, c.EmployeeID)
	}

	for _, room := range c.Subscriptions() {
		h.leaveLocked(c, room)
	}
	c.closeSend()

	h.logger.Info("client disconnected", "employee_id", c.EmployeeID)
}

// deliver sends ev once to each client in any of its rooms. Clients that
// cannot keep up are dropped.
func (h *Hub) deliver(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make(map[*Client]struct{})
	for _, room := range ev.Rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return
	}

	h.logger.Debug("delivering event",
		"event_type", ev.Type,
		"rooms", ev.Rooms,
		"clients", len(targets),
	)
	for c := range targets {
		if !c.offer(ev) {
			h.logger.Warn("client too slow, disconnecting", "employee_id", c.EmployeeID)
			h.removeLocked(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.byEmployee {
		for c := range conns {
			c.closeSend()
		}
	}
	h.byEmployee = make(map[int64]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
}

func (h *Hub) subscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, room)
	h.logger.Debug("client joined room", "employee_id", c.EmployeeID, "room", room)
}

func (h *Hub) unsubscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
	h.logger.Debug("client left room", "employee_id", c.EmployeeID, "room", room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.joined(room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.left(room)
}

// GetClientCount returns the number of open connections.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.byEmployee {
		n += len(conns)
	}
	return n
}

// GetRoomCount returns the number of rooms with at least one member.
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetClientsInRoom returns the number of clients in room.
func (h *Hub) GetClientsInRoom(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
