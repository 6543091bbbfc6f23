// Package ws pushes server events to browser consoles over gorilla/websocket.
// The feed is one way: clients subscribe to topics on connect and only ever
// read.
//
//	hub := ws.NewHub()
//	go hub.Run(ctx)
//	r.Get("/api/admin/orders/live", "admin.orders.live", func(w http.ResponseWriter, r *http.Request) {
//	    ws.Upgrade(w, r, hub)
//	})
//	hub.Publish("order.placed", msg)
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = time.Minute
	pingEvery    = 50 * time.Second
	readLimit    = 512
	queueSize    = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// AllowOrigins restricts browser handshakes to origins. "*" allows any.
// Requests without an Origin header are not from a browser and always pass.
func AllowOrigins(origins ...string) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

type subscriber struct {
	conn   *websocket.Conn
	out    chan []byte
	topics map[string]struct{}
	once   sync.Once
}

func (s *subscriber) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.out) })
}

// Hub tracks connected subscribers. The zero value is not usable; call
// NewHub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: map[*subscriber]struct{}{}}
}

// Run blocks until ctx is done, then disconnects everyone and refuses new
// subscribers.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.close()
		delete(h.subs, s)
	}
}

// Publish sends v, JSON encoded, to every subscriber of topic and returns
// how many received it. Subscribers whose queue is full are dropped.
func (h *Hub) Publish(topic string, v any) (int, error) {
	msg, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for s := range h.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.out <- msg:
			n++
		default:
			logger.Warn("ws: dropping slow subscriber", "topic", topic)
			s.close()
			delete(h.subs, s)
		}
	}
	return n, nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		s.close()
	}
}

// Upgrade completes the handshake and subscribes the connection to hub.
// ?topics=a,b limits the feed; without it every topic is delivered.
func Upgrade(w http.ResponseWriter, r *http.Request, hub *Hub) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("ws: handshake failed", "error", err)
		return err
	}
	s := &subscriber{conn: conn, out: make(chan []byte, queueSize), topics: parseTopics(r.URL.Query().Get("topics"))}
	if !hub.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		return conn.Close()
	}
	logger.WithCtx(r.Context()).Info("ws: subscribed", "subscribers", hub.ClientCount())
	go s.write()
	go s.drain(hub)
	return nil
}

func parseTopics(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	topics := map[string]struct{}{}
	for t := range strings.SplitSeq(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = struct{}{}
		}
	}
	return topics
}

// drain discards client frames so pongs and close frames are processed.
func (s *subscriber) drain(hub *Hub) {
	defer hub.remove(s)
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws: connection lost", "error", err)
			}
			return
		}
	}
}

func (s *subscriber) write() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, open := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
