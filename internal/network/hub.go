package network

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"laurels/internal/notify"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	clientBuffer = 64
)

// Filter selects the notifications a client receives. Empty lists match
// everything.
type Filter struct {
	Types          []protocol.MessageType `json:"types,omitempty"`
	AchievementIDs []string               `json:"achievement_ids,omitempty"`
}

// Matches reports whether n passes the filter
func (f Filter) Matches(n notify.Notification) bool {
	if len(f.Types) > 0 && !containsType(f.Types, n.Type) {
		return false
	}
	if len(f.AchievementIDs) > 0 && !containsString(f.AchievementIDs, n.AchievementID()) {
		return false
	}
	return true
}

// FilterFromQuery reads ?types=A,B&achievement_ids=x,y. Unknown type names
// are ignored.
func FilterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	var f Filter
	for _, name := range splitList(q.Get("types")) {
		if t, err := protocol.ParseMessageType(name); err == nil {
			f.Types = append(f.Types, t)
		}
	}
	f.AchievementIDs = splitList(q.Get("achievement_ids"))
	return f
}

// Client is a websocket subscriber
type Client struct {
	conn   *websocket.Conn
	id     string
	buffer chan *protocol.Message
	done   chan struct{}

	mu     sync.RWMutex
	filter Filter
}

// ID returns the client id
func (c *Client) ID() string { return c.id }

func (c *Client) currentFilter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

func (c *Client) setFilter(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// enqueue never blocks; a full buffer drops the message
func (c *Client) enqueue(msg *protocol.Message) bool {
	select {
	case c.buffer <- msg:
		return true
	default:
		return false
	}
}

// Hub pushes notifications to websocket clients and keeps a bounded replay
// buffer for clients that connect later
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	history   []notify.Notification
	maxBuffer int

	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHub creates a hub replaying up to maxBuffer notifications
func NewHub(maxBuffer int, log *logger.Logger) *Hub {
	if maxBuffer < 0 {
		maxBuffer = 0
	}
	return &Hub{
		clients:   make(map[string]*Client),
		history:   make([]notify.Notification, 0, maxBuffer),
		maxBuffer: maxBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.OrDefault(log, "HUB"),
	}
}

// Notify records n in the replay buffer and queues it for matching clients
func (h *Hub) Notify(n notify.Notification) {
	msg := n.Message()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxBuffer > 0 {
		h.history = append(h.history, n)
		if len(h.history) > h.maxBuffer {
			h.history = append(h.history[:0:0], h.history[len(h.history)-h.maxBuffer:]...)
		}
	}

	for _, c := range h.clients {
		if !c.currentFilter().Matches(n) {
			continue
		}
		if !c.enqueue(msg) {
			h.logger.Warn("Notification buffer full for client %s, dropping %s", c.id, n.Type)
		}
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection: %v", err)
		return
	}

	replay := r.URL.Query().Get("replay") != "false"
	client := h.AddClient(conn, FilterFromQuery(r), replay)
	h.readLoop(client)
}

// AddClient registers conn and starts its writer. With replay set, buffered
// notifications matching the filter are sent first.
func (h *Hub) AddClient(conn *websocket.Conn, filter Filter, replay bool) *Client {
	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		done:   make(chan struct{}),
		filter: filter,
	}

	h.mu.Lock()
	var backlog []*protocol.Message
	if replay {
		for _, n := range h.history {
			if filter.Matches(n) {
				backlog = append(backlog, n.Message())
			}
		}
	}
	client.buffer = make(chan *protocol.Message, clientBuffer+len(backlog)+1)

	hello := protocol.NewMessage(protocol.MsgConnect, protocol.ConnectPayload{ClientID: client.id, Replayed: len(backlog)})
	hello.ClientID = client.id
	client.buffer <- hello
	for _, msg := range backlog {
		client.buffer <- msg
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	h.logger.Info("Notification client connected: %s (replayed %d)", client.id, len(backlog))
	go h.writeLoop(client)
	return client
}

// RemoveClient closes and forgets a client. Removing an unknown id is a no-op.
func (h *Hub) RemoveClient(clientID string) {
	h.mu.Lock()
	client, exists := h.clients[clientID]
	if exists {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if exists {
		close(client.done)
		client.conn.Close()
		h.logger.Info("Notification client disconnected: %s", clientID)
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.RemoveClient(id)
	}
}

// History returns up to limit buffered notifications matching filter,
// oldest first
func (h *Hub) History(filter Filter, limit int) []notify.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []notify.Notification
	for i := len(h.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if filter.Matches(h.history[i]) {
			out = append(out, h.history[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// readLoop handles SUBSCRIBE and PING messages until the connection fails
func (h *Hub) readLoop(client *Client) {
	defer h.RemoveClient(client.id)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Client %s read error: %v", client.id, err)
			}
			return
		}

		msg, err := protocol.DeserializeMessage(data)
		if err != nil {
			h.reply(client, protocol.MsgError, protocol.ErrorPayload{Code: "bad_message", Message: err.Error()})
			continue
		}

		switch msg.Type {
		case protocol.MsgPing:
			h.reply(client, protocol.MsgPong, nil)
		case protocol.MsgSubscribe:
			var sub protocol.SubscribePayload
			if err := protocol.DecodePayload(msg, &sub); err != nil {
				h.reply(client, protocol.MsgError, protocol.ErrorPayload{Code: "bad_subscribe", Message: err.Error()})
				continue
			}
			filter := Filter{Types: sub.Types, AchievementIDs: sub.AchievementIDs}
			client.setFilter(filter)
			h.logger.Debug("Updated filter for client %s", client.id)
			h.reply(client, protocol.MsgSubscribe, sub)
		default:
			h.reply(client, protocol.MsgError, protocol.ErrorPayload{Code: "unsupported", Message: "unsupported message type " + string(msg.Type)})
		}
	}
}

func (h *Hub) reply(client *Client, t protocol.MessageType, payload interface{}) {
	msg := protocol.NewMessage(t, payload)
	msg.ClientID = client.id
	if !client.enqueue(msg) {
		h.logger.Warn("Dropped %s reply for client %s", t, client.id)
	}
}

// writeLoop is the only writer on the connection
func (h *Hub) writeLoop(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.buffer:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to encode %s for client %s: %v", msg.Type, client.id, err)
				continue
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send to client %s: %v", client.id, err)
				h.RemoveClient(client.id)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Failed to ping client %s: %v", client.id, err)
				h.RemoveClient(client.id)
				return
			}

		case <-client.done:
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns statistics about the hub
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"connected_clients": len(h.clients),
		"buffer_size":       len(h.history),
		"max_buffer":        h.maxBuffer,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsType(types []protocol.MessageType, t protocol.MessageType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
