package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
)

// Event types
const (
	EventOrderUpdate   = "order_update"
	EventKitchenUpdate = "kitchen_update"
	EventSessionUpdate = "session_update"
	EventTableUpdate   = "table_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	defaultSendQueue = 64
	defaultWriteWait = 5 * time.Second
)

// client owns a queue drained by its own writer goroutine, so a slow screen
// never holds up a broadcast.
type client struct {
	conn Conn
	role string
	send chan []byte
}

// Hub fans committed state out to connected screens (chef, staff, admin).
type Hub struct {
	clients   map[Conn]*client
	mutex     sync.Mutex
	sendQueue int
	writeWait time.Duration
}

func NewHub() *Hub {
	return newHub(defaultSendQueue, defaultWriteWait)
}

func newHub(sendQueue int, writeWait time.Duration) *Hub {
	return &Hub{
		clients:   make(map[Conn]*client),
		sendQueue: sendQueue,
		writeWait: writeWait,
	}
}

// Register adds a connection for role and starts its writer.
func (h *Hub) Register(conn Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		return
	}
	c := &client{conn: conn, role: role, send: make(chan []byte, h.sendQueue)}
	h.clients[conn] = c
	go h.writePump(c)
}

// Unregister drops and closes a connection.
func (h *Hub) Unregister(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if c, ok := h.clients[conn]; ok {
		h.drop(c)
	}
}

// drop must be called with the mutex held.
func (h *Hub) drop(c *client) {
	delete(h.clients, c.conn)
	close(c.send)
	c.conn.Close()
}

// Clients returns the number of connected screens.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"role":  c.role,
				"error": err,
			}).Warn("Dropping websocket client after failed write")
			h.Unregister(c.conn)
			return
		}
	}
}

func (h *Hub) BroadcastOrderUpdate(order models.Order) {
	h.broadcast(Message{Event: EventOrderUpdate, Data: order}, nil)
}

// BroadcastKitchenUpdate goes to kitchen-facing roles only.
func (h *Hub) BroadcastKitchenUpdate(data interface{}) {
	h.broadcast(Message{Event: EventKitchenUpdate, Data: data}, kitchenRoles)
}

func (h *Hub) BroadcastSessionUpdate(session models.TableSession) {
	h.broadcast(Message{Event: EventSessionUpdate, Data: session}, floorRoles)
}

func (h *Hub) BroadcastTableUpdate(table models.PoolTable) {
	h.broadcast(Message{Event: EventTableUpdate, Data: table}, floorRoles)
}

var (
	kitchenRoles = map[string]bool{models.RoleChef: true, models.RoleStaff: true, models.RoleAdmin: true}
	floorRoles   = map[string]bool{models.RoleStaff: true, models.RoleAdmin: true}
)

// broadcast queues msg for every client whose role is in roles, or for all
// clients when roles is nil. A client whose queue is full is dropped.
func (h *Hub) broadcast(msg Message, roles map[string]bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("event", msg.Event).Error("Error marshaling message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	queued := 0
	for _, c := range h.clients {
		if roles != nil && !roles[c.role] {
			continue
		}
		select {
		case c.send <- data:
			queued++
		default:
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event": msg.Event,
				"role":  c.role,
			}).Warn("Dropping websocket client that fell behind")
			h.drop(c)
		}
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"event":   msg.Event,
		"clients": queued,
	}).Debug("Broadcast message")
}
