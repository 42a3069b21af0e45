package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/services/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

var _ notification.Sink = (*Hub)(nil)

type wsMessage struct {
	Type  string              `json:"type"`
	Kind  store.EventKind     `json:"kind,omitempty"`
	Card  *CardView           `json:"card,omitempty"`
	ID    string              `json:"id,omitempty"`
	Alert *notification.Alert `json:"alert,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans store events and alerts out to connected WebSocket clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	clock    clock.Clock
	log      *zap.Logger
}

func NewHub(log *zap.Logger, clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Hub{
		clients: map[*wsClient]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clock: clk,
		log:   obs.Component(log, "api.hub"),
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Send(_ context.Context, a notification.Alert) error {
	h.broadcast(wsMessage{Type: "alert", Alert: &a})
	return nil
}

// Pump forwards store events until ctx ends or events is closed.
func (h *Hub) Pump(ctx context.Context, events <-chan store.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := wsMessage{Type: "monitor", Kind: ev.Kind, ID: ev.Monitor.ID}
			if ev.Kind != store.EventDeleted {
				card := Card(ev.Monitor, h.clock.Now())
				msg.Card = &card
			}
			h.broadcast(msg)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade", zap.Error(err))
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr))

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg wsMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode websocket message", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
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
