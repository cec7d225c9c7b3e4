package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"SMSDesk/logger"
	midsec "SMSDesk/middleware/security"
	"SMSDesk/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	writeWait   = 10 * time.Second
	egressDepth = 64
)

// UnreadUpdate is pushed to a user's dashboard sessions whenever their
// unread picture changes (mark-read confirmed, inbox refreshed).
type UnreadUpdate struct {
	PhoneNumber string `json:"phone_number"`
	Unread      int    `json:"unread"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	egress chan []byte
}

// Hub fans unread updates out to connected dashboard sessions, keyed by
// user. Registration and broadcast go through channels; the run loop is
// the only goroutine touching the client set.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan targeted

	mu      sync.RWMutex
	clients map[string]map[*client]bool
}

type targeted struct {
	userID  string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client, 64),
		unregister: make(chan *client, 64),
		broadcast:  make(chan targeted, 256),
		clients:    make(map[string]map[*client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*client]bool)
			}
			h.clients[c.userID][c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[c.userID]; ok {
				if set[c] {
					delete(set, c)
					close(c.egress)
				}
				if len(set) == 0 {
					delete(h.clients, c.userID)
				}
			}
			h.mu.Unlock()
		case t := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients[t.userID] {
				select {
				case c.egress <- t.payload:
				default:
					// slow consumer: drop the update, the next
					// refresh recomputes everything anyway
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Push queues unread updates for every session the user has open.
func (h *Hub) Push(userID string, updates []UnreadUpdate) {
	if len(updates) == 0 {
		return
	}
	payload, err := json.Marshal(gin.H{"type": "unread", "conversations": updates})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- targeted{userID: userID, payload: payload}:
	default:
		logger.Warn("[notify] broadcast queue full, dropping update")
	}
}

// HandleWS upgrades the dashboard's websocket. Runs behind the auth
// middleware; the user comes from the verified token.
func (h *Hub) HandleWS(c *gin.Context) {
	userID := c.GetString(midsec.CtxUserIDKey)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[notify] upgrade websocket error: %v", err)
		return
	}

	cl := &client{userID: userID, conn: ws, egress: make(chan []byte, egressDepth)}
	h.register <- cl

	safe.Go(func() { cl.writeLoop() })
	safe.Go(func() {
		defer func() { h.unregister <- cl }()
		cl.readLoop()
	})
}

// readLoop only consumes control frames; the dashboard never sends data
// over this socket. Exiting unregisters the client.
func (c *client) readLoop() {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return
			}
			logger.Debug("[notify] read: " + err.Error())
			return
		}
	}
}

func (c *client) writeLoop() {
	defer func() { _ = c.conn.Close() }()
	for payload := range c.egress {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
}
