package connmgr

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

var ErrClosed = errors.New("connection closed")

// inboxSize bounds the commands a client may have waiting behind the one
// being handled.
const inboxSize = 32

// Conn is one client connection. Writes are serialized; teardown runs once.
type Conn struct {
	id  string
	ws  *websocket.Conn
	mgr *Manager
	log logger.Logger

	alive   atomic.Bool
	writeMu sync.Mutex

	inbox  chan []byte
	done   chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *Conn) ID() string { return c.id }

// Context is cancelled when the connection is torn down.
func (c *Conn) Context() context.Context { return c.ctx }

// Send writes v as a JSON text message to this connection only.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// Close tears the connection down.
func (c *Conn) Close() error {
	c.terminate("closed by server")
	return nil
}

func (c *Conn) write(messageType int, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.mgr.opts.WriteWait))
	err := c.ws.WriteMessage(messageType, data)
	c.writeMu.Unlock()

	if err != nil {
		c.log.Debug("write failed", logger.Error(err))
		c.terminate("write failed")
		return err
	}
	return nil
}

// readLoop keeps reading while commands run on the worker, so pongs are
// processed even when a command is slow.
func (c *Conn) readLoop() {
	defer c.terminate("read loop ended")
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("client closed connection", logger.Error(err))
			} else {
				select {
				case <-c.done:
				default:
					c.log.Info("websocket read error", logger.Error(err))
				}
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbox <- data:
		case <-c.done:
			return
		default:
			c.log.Warn("client has too many pending commands, terminating",
				logger.Int("pending", len(c.inbox)))
			c.terminate("command queue full")
			return
		}
	}
}

// work handles queued messages one at a time, in arrival order.
func (c *Conn) work(h Handler) {
	defer c.mgr.workers.Add(-1)
	for {
		select {
		case <-c.done:
			return
		case data := <-c.inbox:
			h(c.Context(), c, data)
		}
	}
}

// heartbeat pings the peer every interval. A peer that did not answer the
// previous ping is terminated.
func (c *Conn) heartbeat(interval time.Duration) {
	t := time.NewTicker(interval)
	defer func() {
		t.Stop()
		c.mgr.heartbeats.Add(-1)
	}()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if !c.alive.Swap(false) {
				c.log.Info("client missed heartbeat, terminating")
				c.terminate("heartbeat timeout")
				return
			}
			deadline := time.Now().Add(c.mgr.opts.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("ping failed", logger.Error(err))
				c.terminate("ping failed")
				return
			}
		}
	}
}

func (c *Conn) goAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.mgr.opts.WriteWait))
}

// terminate is the only release path. Safe to call from any goroutine, any
// number of times.
func (c *Conn) terminate(reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		left := c.mgr.unregister(c)
		c.cancel()
		c.log.Info("client disconnected",
			logger.String("reason", reason),
			logger.Int("clients", left))
	})
}
