package livefeed

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/attendmesh/internal/core/service"
)

// Message types.
const (
	MsgSnapshot = "snapshot"
	MsgEvent    = "event"
)

// Message is the frame sent to feed clients.
type Message struct {
	Type    string         `json:"type"`
	Event   *service.Event `json:"event,omitempty"`
	Payload any            `json:"payload,omitempty"`
}

// ErrTooManyClients is returned when the connection limit is reached.
var ErrTooManyClients = errors.New("livefeed: too many clients")

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Gauge receives the connected client count.
type Gauge interface {
	Set(float64)
}

// Config configures a Broadcaster.
type Config struct {
	// MaxClients caps concurrent connections (0 = unlimited).
	MaxClients int

	// AllowedOrigins lists accepted Origin headers. Empty means same host only.
	AllowedOrigins []string

	// Snapshot, if set, produces the payload sent right after connecting.
	Snapshot func() any

	// Gauge, if set, tracks the client count.
	Gauge Gauge

	Logger *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans attendance events out to WebSocket clients.
type Broadcaster struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ service.Observer = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(cfg Config) *Broadcaster {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(cfg.AllowedOrigins) > 0 {
		allowed := make(map[string]bool, len(cfg.AllowedOrigins))
		for _, o := range cfg.AllowedOrigins {
			allowed[o] = true
		}
		b.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	return b
}

// ServeHTTP upgrades the request and registers the client. Authentication
// happens in front of this handler.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.full() {
		http.Error(w, ErrTooManyClients.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c, err := b.add(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	b.logger.Debug("feed client connected", "remote", r.RemoteAddr)

	go b.readPump(c)
}

func (b *Broadcaster) full() bool {
	if b.cfg.MaxClients <= 0 {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients) >= b.cfg.MaxClients
}

func (b *Broadcaster) add(conn *websocket.Conn) (*client, error) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("livefeed: closed")
	}
	if b.cfg.MaxClients > 0 && len(b.clients) >= b.cfg.MaxClients {
		b.mu.Unlock()
		return nil, ErrTooManyClients
	}
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()

	b.setGauge(n)
	go b.writePump(c)

	if b.cfg.Snapshot != nil {
		if data, err := json.Marshal(Message{Type: MsgSnapshot, Payload: b.cfg.Snapshot()}); err == nil {
			b.mu.RLock()
			if _, ok := b.clients[c]; ok {
				select {
				case c.send <- data:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
	return c, nil
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	n := len(b.clients)
	b.mu.Unlock()

	if ok {
		b.setGauge(n)
	}
}

func (b *Broadcaster) setGauge(n int) {
	if b.cfg.Gauge != nil {
		b.cfg.Gauge.Set(float64(n))
	}
}

// readPump discards client frames and detects disconnects.
func (b *Broadcaster) readPump(c *client) {
	defer b.remove(c)

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

func (b *Broadcaster) writePump(c *client) {
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
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
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

// OnAttendanceEvent implements service.Observer. It never blocks.
func (b *Broadcaster) OnAttendanceEvent(ev service.Event) {
	data, err := json.Marshal(Message{Type: MsgEvent, Event: &ev})
	if err != nil {
		b.logger.Warn("feed marshal failed", "error", err)
		return
	}
	b.broadcast(data)
}

func (b *Broadcaster) broadcast(data []byte) {
	var slow []*client

	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Debug("feed client too slow, disconnecting")
		b.remove(c)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		b.remove(c)
	}
}
