// Package ws feeds newly persisted messages to connected dashboards, one
// room per organization.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/petrelay/petrelay/internal/models"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from another origin in development; the JWT
	// on the upgrade request is the actual gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is the wire shape pushed to dashboards.
type event struct {
	Type string         `json:"type"`
	Data models.Message `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected dashboard clients per organization and fans out
// message events. Safe for concurrent use; publishers never block; a
// client that can't keep up is dropped.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*client]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*client]struct{}),
		logger: logger,
	}
}

// PublishMessage fans one persisted message out to the organization's room.
func (h *Hub) PublishMessage(orgID uuid.UUID, msg models.Message) {
	data, err := json.Marshal(event{Type: "message", Data: msg})
	if err != nil {
		h.logger.Error("marshal feed event", zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[orgID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// Slow consumers are dropped rather than blocking the worker; closing
	// the channel makes the write pump tear the connection down.
	for _, c := range slow {
		h.remove(orgID, c)
	}
}

// HandleConnection upgrades the request and pumps events until the client
// goes away. The caller has already authenticated the request and resolved
// the organization.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(orgID, c)
	h.logger.Debug("dashboard connected", zap.String("organization_id", orgID.String()))

	go h.writePump(orgID, c)
	go h.readPump(orgID, c)
	return nil
}

func (h *Hub) add(orgID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[orgID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[orgID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) remove(orgID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[orgID]
	if !ok {
		return
	}
	if _, present := room[c]; !present {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, orgID)
	}
	close(c.send)
}

// readPump discards client frames; it exists to notice the close.
func (h *Hub) readPump(orgID uuid.UUID, c *client) {
	defer func() {
		h.remove(orgID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(orgID uuid.UUID, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(orgID, c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(orgID, c)
				return
			}
		}
	}
}
