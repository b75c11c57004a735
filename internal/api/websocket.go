package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all for local dashboard
	},
}

// DashboardEventType names the kinds of activity the engine pushes to
// connected dashboard clients.
type DashboardEventType string

const (
	EventUserRegistered DashboardEventType = "user_registered"
	EventLoginAttempt   DashboardEventType = "login_attempt"
	EventUserDeleted    DashboardEventType = "user_deleted"
)

// DashboardEvent is the single typed envelope every websocket message
// carries; Payload is one of the Payload structs below depending on Type.
type DashboardEvent struct {
	Type    DashboardEventType `json:"type"`
	Payload any                `json:"payload"`
}

type UserRegisteredPayload struct {
	UserID string `json:"userId"`
}

type LoginAttemptPayload struct {
	UserID     string  `json:"userId"`
	Accepted   bool    `json:"accepted"`
	Similarity float64 `json:"similarity"`
}

type UserDeletedPayload struct {
	UserID string `json:"userId"`
}

type hubClient struct {
	conn   *websocket.Conn
	filter map[DashboardEventType]bool // empty/nil means every event type
}

func (c *hubClient) wants(t DashboardEventType) bool {
	if len(c.filter) == 0 {
		return true
	}
	return c.filter[t]
}

// Hub maintains the set of active dashboard websocket clients and fans out
// typed events to them, each scoped to whatever event types a client asked
// for when it subscribed.
type Hub struct {
	clients   map[*websocket.Conn]*hubClient
	broadcast chan DashboardEvent
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan DashboardEvent, 256),
		clients:   make(map[*websocket.Conn]*hubClient),
	}
}

func (h *Hub) Run() {
	for event := range h.broadcast {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("api: failed to marshal dashboard event %s: %v", event.Type, err)
			continue
		}

		h.mutex.Lock()
		for conn, client := range h.clients {
			if !client.wants(event.Type) {
				continue
			}
			// Set write deadline to prevent a blocked client from hanging the hub.
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("api: websocket write error: %v", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the request to a websocket connection. An optional
// ?events=user_registered,login_attempt query parameter scopes the stream
// to just those event types; omitted or empty subscribes to everything.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("api: failed to upgrade websocket: %v", err)
		return
	}

	client := &hubClient{conn: conn, filter: parseEventFilter(c.Query("events"))}

	h.mutex.Lock()
	h.clients[conn] = client
	h.mutex.Unlock()

	log.Printf("api: dashboard client connected, total=%d", len(h.clients))

	// Keep-alive loop: we only ever push down, but we must read to notice
	// when the client goes away.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("api: dashboard client disconnected, total=%d", len(h.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("api: websocket error: %v", err)
				}
				break
			}
		}
	}()
}

func parseEventFilter(raw string) map[DashboardEventType]bool {
	if raw == "" {
		return nil
	}
	out := make(map[DashboardEventType]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[DashboardEventType(part)] = true
		}
	}
	return out
}

// BroadcastEvent pushes a typed dashboard event to every connected client
// whose filter accepts it.
func (h *Hub) BroadcastEvent(event DashboardEvent) {
	h.broadcast <- event
}
