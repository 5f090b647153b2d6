// Package relayclient is the agent's websocket link to the signaling relay.
// It reconnects on its own and hands every decoded event to the mesh on the
// event loop.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/signaling"
)

var (
	ErrNotConnected = errors.New("relay: not connected")
	ErrBackpressure = errors.New("relay: send buffer full")
)

type Config struct {
	URL             string        `mapstructure:"url"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	ReconnectWindow time.Duration `mapstructure:"reconnect_window"`
}

func DefaultConfig() Config {
	return Config{
		URL:             "ws://localhost:8080/ws",
		SendBuffer:      64,
		WriteTimeout:    5 * time.Second,
		ReadLimit:       64 << 10,
		InitialBackoff:  500 * time.Millisecond,
		MaxBackoff:      10 * time.Second,
		ReconnectWindow: 2 * time.Minute,
	}
}

// Handler receives relay traffic. All calls arrive on the event loop.
// RelayRestored is called every time the link comes up, including the
// first, so a join requested before the link existed is replayed.
type Handler interface {
	Handle(signaling.Event)
	RelayLost(err error, terminal bool)
	RelayRestored()
}

type Poster interface {
	Post(fn func())
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	header http.Header
	loop   Poster
	log    zerolog.Logger

	mu      sync.Mutex
	handler Handler
	conn    *wsConn
}

var _ core.Relay = (*Client)(nil)

func New(cfg Config, loop Poster) *Client {
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		header: http.Header{},
		loop:   loop,
		log:    log.With().Str("module", "relayclient").Str("url", cfg.URL).Logger(),
	}
}

// SetHandler must be called before Run.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Send encodes ev and queues it for the write pump.
func (c *Client) Send(ev signaling.Event) error {
	data, err := signaling.Encode(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.TrySend(data)
}

// Run keeps the relay link up until ctx ends or the reconnect window runs
// out. In the latter case the handler sees a terminal loss and Run returns
// the last dial error.
func (c *Client) Run(ctx context.Context) error {
	bo := newBackoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff)
	var lostAt time.Time

	for {
		ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lostAt.IsZero() {
				lostAt = time.Now()
			}
			if time.Since(lostAt) >= c.cfg.ReconnectWindow {
				c.log.Error().Err(err).Msg("reconnect window exhausted")
				c.post(func(h Handler) { h.RelayLost(err, true) })
				return fmt.Errorf("relay unreachable: %w", err)
			}
			d := bo.Next()
			c.log.Warn().Err(err).Dur("retry_in", d).Msg("dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			continue
		}

		bo.Reset()
		lostAt = time.Time{}
		conn := c.attach(ws)
		c.log.Info().Msg("relay connected")
		// Send works from here on
		c.post(func(h Handler) { h.RelayRestored() })

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lostAt = time.Now()
		c.log.Warn().Err(err).Msg("relay connection lost")
		c.post(func(h Handler) { h.RelayLost(err, false) })
	}
}

// attach makes ws the link Send writes to.
func (c *Client) attach(ws *websocket.Conn) *wsConn {
	if c.cfg.ReadLimit > 0 {
		ws.SetReadLimit(c.cfg.ReadLimit)
	}
	conn := newWSConn(ws, c.cfg.SendBuffer)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn
}

func (c *Client) serve(ctx context.Context, conn *wsConn) error {
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { c.writePump(ctx, conn) })
	err := c.readPump(ctx, conn)
	conn.Close()
	cancel()
	wg.Wait()
	return err
}

func (c *Client) readPump(ctx context.Context, conn *wsConn) error {
	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := signaling.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.post(func(h Handler) { h.Handle(ev) })
	}
}

func (c *Client) writePump(ctx context.Context, conn *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.send:
			if !ok {
				return
			}
			if err := conn.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.log.Error().Err(err).Msg("writePump set deadline")
				conn.Close()
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) post(fn func(Handler)) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return
	}
	c.loop.Post(func() { fn(h) })
}

// wsConn serializes writes through a bounded channel.
type wsConn struct {
	ws   *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, buf int) *wsConn {
	return &wsConn{ws: ws, send: make(chan core.Frame, max(buf, 1))}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrNotConnected
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}
