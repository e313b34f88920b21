package realtime

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventDeviceStatusUpdate = "device_status_update"
	EventChatMessage        = "chat_message"

	sendBuffer = 16
	pingEvery  = 25 * time.Second
	readWait   = 60 * time.Second
	writeWait  = 5 * time.Second
)

// Event is the push envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Authenticator resolves the user behind a push connection token.
type Authenticator interface {
	UserIDFromToken(token string) (uint, error)
}

// Hub fans events out to every open connection of a user.
type Hub struct {
	upgrader websocket.Upgrader
	auth     Authenticator
	devMode  bool
	logger   *zap.Logger

	mu    sync.Mutex
	users map[uint]map[*client]struct{}
}

type client struct {
	id     string
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

func NewHub(auth Authenticator, devMode bool, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		auth:    auth,
		devMode: devMode,
		logger:  logger.Named("realtime"),
		users:   map[uint]map[*client]struct{}{},
	}
}

// ServeHTTP upgrades GET /ws?token=<jwt>. In dev mode ?userId=<id> is
// accepted without a token.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{id: uuid.NewString(), userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.addClient(c)
	h.logger.Info("push connection opened", zap.Uint("user_id", userID), zap.String("conn_id", c.id))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) resolveUser(r *http.Request) (uint, bool) {
	if token := r.URL.Query().Get("token"); token != "" && h.auth != nil {
		id, err := h.auth.UserIDFromToken(token)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	if h.devMode {
		id, err := strconv.ParseUint(r.URL.Query().Get("userId"), 10, 64)
		if err == nil && id > 0 {
			return uint(id), true
		}
	}
	return 0, false
}

// SendToUser delivers ev to all of the user's connections. A connection
// whose buffer is full is dropped.
func (h *Hub) SendToUser(userID uint, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("push encode failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("dropping slow push connection", zap.Uint("user_id", userID), zap.String("conn_id", c.id))
			h.removeLocked(c)
		}
	}
}

// DeviceStatus is the payload of a device_status_update event.
type DeviceStatus struct {
	DeviceID  uint      `json:"deviceId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Hub) SendDeviceStatusUpdate(userID, deviceID uint, status string) {
	h.SendToUser(userID, Event{
		Type: EventDeviceStatusUpdate,
		Data: DeviceStatus{DeviceID: deviceID, Status: status, Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) SendChatMessage(userID uint, message any) {
	h.SendToUser(userID, Event{Type: EventChatMessage, Data: message})
}

// ConnectionCount reports the number of open connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.userID]
	if !ok {
		set = map[*client]struct{}{}
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.users[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.users, c.userID)
	}
	close(c.send)
	_ = c.conn.Close()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.removeClient(c)
		h.logger.Info("push connection closed", zap.Uint("user_id", c.userID), zap.String("conn_id", c.id))
	}()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
