// Package connmgr accepts WebSocket clients, keeps them alive with
// ping/pong heartbeats and delivers directed and broadcast messages.
package connmgr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

const (
	DefaultPingInterval    = 10 * time.Second
	DefaultWriteWait       = 5 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
)

type Options struct {
	PingInterval    time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	// Patterns like "*.example.com" match subdomains.
	AllowedOrigins []string
}

// Handler is called for each inbound message, sequentially per connection.
type Handler func(ctx context.Context, c *Conn, raw []byte)

// Manager owns the set of live connections.
type Manager struct {
	opts     Options
	log      logger.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn

	heartbeats atomic.Int64
	workers    atomic.Int64
	closed     atomic.Bool
}

func New(opts Options, log logger.Logger) *Manager {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	m := &Manager{
		opts:  opts,
		log:   log,
		conns: make(map[string]*Conn),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

// Accept upgrades the request and serves the connection until it is torn
// down. It blocks, so call it from the HTTP handler goroutine.
func (m *Manager) Accept(w http.ResponseWriter, r *http.Request, h Handler) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		m.log.Warn("websocket upgrade failed",
			logger.String("remote_ip", r.RemoteAddr),
			logger.String("origin", r.Header.Get("Origin")),
			logger.Error(err))
		return err
	}

	c := m.newConn(r.Context(), ws, r.RemoteAddr)
	if !m.register(c) {
		c.terminate("server closing")
		return nil
	}

	m.heartbeats.Add(1)
	go c.heartbeat(m.opts.PingInterval)
	m.workers.Add(1)
	go c.work(h)

	c.readLoop()
	return nil
}

// Broadcast sends v to every live connection. A connection whose write
// fails is torn down; the others are unaffected.
func (m *Manager) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Error("broadcast message not encodable", logger.Error(err))
		return
	}
	for _, c := range m.snapshot() {
		_ = c.write(websocket.TextMessage, data)
	}
}

// Close tears down every connection and refuses new ones.
func (m *Manager) Close() error {
	m.closed.Store(true)
	conns := m.snapshot()
	for _, c := range conns {
		c.goAway()
		c.terminate("server closing")
	}
	if len(conns) > 0 {
		m.log.Info("websocket connections closed", logger.Int("count", len(conns)))
	}
	return nil
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Heartbeats returns the number of running heartbeat goroutines.
func (m *Manager) Heartbeats() int {
	return int(m.heartbeats.Load())
}

func (m *Manager) register(c *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return false
	}
	m.conns[c.id] = c
	c.log.Info("client connected", logger.Int("clients", len(m.conns)))
	return true
}

func (m *Manager) unregister(c *Conn) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, c.id)
	return len(m.conns)
}

func (m *Manager) snapshot() []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Not a browser.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, pattern := range m.opts.AllowedOrigins {
		if matchHost(host, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// matchHost checks if host matches pattern (supports wildcard *.example.com)
func matchHost(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix)
	}
	return false
}

func (m *Manager) newConn(parent context.Context, ws *websocket.Conn, remote string) *Conn {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	ws.SetReadLimit(m.opts.MaxMessageBytes)

	c := &Conn{
		id:     id,
		ws:     ws,
		mgr:    m,
		inbox:  make(chan []byte, inboxSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		log: m.log.With(
			logger.String("conn_id", id),
			logger.String("remote_ip", remote)),
	}
	c.alive.Store(true)
	ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}
