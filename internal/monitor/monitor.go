// Package monitor streams coordinator events and level samples to websocket clients.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/jarvis/internal/meter"
	"github.com/rbright/jarvis/internal/session"
)

const (
	topicEvents = "events"
	topicLevel  = "level"

	clientBuffer = 32
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second
)

// EventFrame is the JSON shape of one coordinator event on /events.
type EventFrame struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
	State    string    `json:"state"`
	Resource string    `json:"resource,omitempty"`
	Voice    string    `json:"voice,omitempty"`
	Text     string    `json:"text,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// LevelFrame is the JSON shape of one meter sample on /level.
type LevelFrame struct {
	Type    string    `json:"type"`
	Current float32   `json:"current"`
	Peak    float32   `json:"peak"`
	At      time.Time `json:"at"`
}

type client struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans frames out to subscribed clients. A client whose buffer is full is
// disconnected rather than allowed to stall the publisher.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New constructs an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish implements session.EventSink.
func (h *Hub) Publish(_ context.Context, event session.Event) {
	frame := EventFrame{
		Type:   "event",
		ID:     event.ID,
		Kind:   string(event.Kind),
		At:     event.At,
		State:  string(event.State),
		Voice:  event.Voice,
		Text:   event.Text,
		Detail: event.Detail,
	}
	if event.Resource != nil {
		frame.Resource = event.Resource.Name()
	}
	h.broadcast(topicEvents, frame)
}

// PublishLevel sends one meter sample to /level subscribers.
func (h *Hub) PublishLevel(sample meter.Sample) {
	h.broadcast(topicLevel, LevelFrame{Type: "level", Current: sample.Current, Peak: sample.Peak, At: sample.At})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler routes GET /events and GET /level.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) { h.serveWS(w, r, topicEvents) })
	mux.HandleFunc("GET /level", func(w http.ResponseWriter, r *http.Request) { h.serveWS(w, r, topicLevel) })
	return mux
}

// Serve listens on addr until ctx is canceled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		h.closeAll()
	}()

	h.logger.Info("monitor listening", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("monitor upgrade failed", "error", err.Error())
		return
	}

	c := &client{topic: topic, conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("monitor client connected", "topic", topic, "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames and unregisters the client once the peer goes away.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(topic string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("monitor encode failed", "error", err.Error())
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		if c.topic != topic {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("monitor client too slow; disconnecting", "topic", c.topic)
		h.drop(c)
	}
}

// drop unregisters c and closes its send channel once.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.drop(c)
	}
}
