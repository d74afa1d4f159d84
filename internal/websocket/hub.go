package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"uk-requests/internal/model"
	"uk-requests/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types pushed to clients
const (
	EventRequestCreated = "request.created"
	EventStatusChanged  = "request.status_changed"
)

// Event is a committed request lifecycle change.
type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	OwnerID   string    `json:"owner_id"`
	CompanyID string    `json:"company_id,omitempty"` // company serving the owner's house
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	Comment   string    `json:"comment,omitempty"`
	ChangedBy string    `json:"changed_by"`
	At        time.Time `json:"at"`
}

// Authenticator resolves a bearer token into an actor.
type Authenticator func(ctx context.Context, token string) (workflow.Actor, error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	Actor workflow.Actor
}

// wants reports whether the client may see msg. Residents see their own
// requests, dispatchers and admins those of their company, super admins all.
func (c *Client) wants(msg message) bool {
	switch c.Actor.Role {
	case model.RoleSuperAdmin:
		return true
	case model.RoleDispatcher, model.RoleAdmin:
		return c.Actor.CompanyID != nil && msg.companyID != "" && c.Actor.CompanyID.String() == msg.companyID
	case model.RoleResident:
		return c.Actor.ID.String() == msg.ownerID
	default:
		return false
	}
}

type message struct {
	payload   []byte
	ownerID   string
	companyID string
}

// Hub maintains the set of active clients and fans request events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Publish queues evt for delivery. It never blocks the caller; events are
// dropped when the queue is full.
func (h *Hub) Publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("failed to encode websocket event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{payload: payload, ownerID: evt.OwnerID, companyID: evt.CompanyID}:
	default:
		h.log.Warn("websocket queue full, dropping event",
			zap.String("type", evt.Type), zap.String("request_id", evt.RequestID))
	}
}

// Run starts the core dispatch loop for WebSocket events. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("websocket client connected",
				zap.String("user_id", client.Actor.ID.String()), zap.String("role", string(client.Actor.Role)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("websocket client disconnected", zap.String("user_id", client.Actor.ID.String()))
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(msg) {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// attach registers c with a running hub. It reports false once the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// detach unregisters c; it is a no-op once the hub has stopped.
func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump keeps the connection alive; clients never send anything meaningful.
func (c *Client) readPump() {
	defer func() {
		c.Hub.detach(c)
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}
	}
}

// ServeWs authenticates the peer via the token query param and upgrades the connection.
func ServeWs(hub *Hub, c *gin.Context, auth Authenticator) {
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.log.Info("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	actor, err := auth(c.Request.Context(), tokenString)
	if err != nil {
		hub.log.Info("websocket connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), Actor: actor}
	if !hub.attach(client) {
		_ = conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
