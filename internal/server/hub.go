package server

import (
	"net/http"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame is one message on the stream: the action just reduced (absent in
// the greeting frame) and the view after it.
type Frame struct {
	Seq    uint64              `json:"seq"`
	Action jsoniter.RawMessage `json:"action,omitempty"`
	View   view.ViewModel      `json:"view"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
	after uint64 // seq already covered by the greeting
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans store updates out to WebSocket clients. It is a store listener:
// OnAction never blocks, so a client that cannot keep up is dropped.
type Hub struct {
	store     StateStore
	selectors *view.Selectors
	upgrader  websocket.Upgrader
	buffer    int
	metrics   *infra.Metrics
	logger    *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

var _ engine.Listener = (*Hub)(nil)

// NewHub creates a hub; buffer is the per-client frame queue length.
func NewHub(store StateStore, selectors *view.Selectors, buffer int, metrics *infra.Metrics, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		store:     store,
		selectors: selectors,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:  buffer,
		metrics: metrics,
		logger:  logger.Named("Hub"),
		clients: make(map[*client]struct{}),
	}
}

// OnAction implements engine.Listener.
func (h *Hub) OnAction(p engine.Processed, st domain.State) {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	msg, err := h.encode(p.Seq, p.Action, st)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.Uint64("seq", p.Seq), zap.Error(err))
		return
	}
	h.broadcast(p.Seq, msg)
}

func (h *Hub) encode(seq uint64, a event.Action, st domain.State) ([]byte, error) {
	f := Frame{Seq: seq, View: h.selectors.ViewModel(st)}
	if a != nil {
		raw, err := event.Encode(a)
		if err != nil {
			return nil, err
		}
		f.Action = raw
	}
	return json.Marshal(f)
}

func (h *Hub) broadcast(seq uint64, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if seq <= c.after {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	h.metrics.DecrementClients()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams frames until the client leaves.
func (h *Hub) Serve(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.buffer)}

	// Greeting and registration happen under one lock so no action falls
	// between the snapshot and the first broadcast.
	h.mu.Lock()
	st, seq := h.store.Snapshot()
	greeting, err := h.encode(seq, nil, st)
	if err != nil {
		h.mu.Unlock()
		h.logger.Error("Failed to encode greeting", zap.Error(err))
		conn.Close()
		return
	}
	c.send <- greeting
	c.after = seq
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncrementClients()
	h.logger.Debug("Client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	h.readPump(c)
}

// readPump only services control frames; clients post actions over HTTP.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Client read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
