package cot

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Reconnect backoff bounds for the TAK TCP transport.
const (
	backoffInitial = 250 * time.Millisecond
	backoffMax     = 8 * time.Second
	dialTimeout    = 5 * time.Second
	writeTimeout   = 5 * time.Second
)

// Handler processes a decoded inbound event. Handlers run on the read
// goroutine; anything slow must hand off.
type Handler func(ev Event)

// Conn is a long-lived CoT-over-TCP client. It owns the socket
// lifecycle: dial, read loop, reconnect with exponential backoff, and a
// serialized writer. Inbound events dispatch through a type-keyed
// handler table; the empty key is the default handler.
type Conn struct {
	addr string
	log  *slog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	conn     net.Conn

	// OnReconnect, optional, observes each redial attempt for metrics.
	OnReconnect func()
}

// NewConn returns a client for addr (host:port). Call Run to connect.
func NewConn(addr string, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{addr: addr, log: log, handlers: make(map[string]Handler)}
}

// RegisterHandler installs a handler for events of the given type code;
// the empty string catches everything without a specific handler.
func (c *Conn) RegisterHandler(typeCode string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[typeCode] = h
}

// Send marshals and writes one event. Transport failures surface to the
// caller; the read loop notices the dead socket and redials.
func (c *Conn) Send(ev Event) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("cot: not connected")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(append(data, '\n'))
	return err
}

// Connected reports whether a socket is currently up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run dials and reads until ctx is cancelled, reconnecting with
// exponential backoff on any transport error. It blocks; callers run it
// in a goroutine.
func (c *Conn) Run(ctx context.Context) {
	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.log.Warn("cot dial failed", "addr", c.addr, "backoff", backoff, "error", err)
			if c.OnReconnect != nil {
				c.OnReconnect()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
			continue
		}

		c.log.Info("cot connected", "addr", c.addr)
		backoff = backoffInitial
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}
}

// readLoop decodes the raw XML event stream until the socket dies. CoT
// over TCP is a concatenation of <event/> documents with no framing, so
// the decoder walks tokens and unmarshals each top-level element.
func (c *Conn) readLoop(ctx context.Context, conn net.Conn) {
	dec := xml.NewDecoder(conn)
	for {
		if ctx.Err() != nil {
			return
		}
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn("cot read ended", "error", err)
			}
			return
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "event" {
			continue
		}
		var ev Event
		if err := dec.DecodeElement(&ev, &start); err != nil {
			c.log.Warn("cot event decode failed", "error", err)
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Conn) dispatch(ev Event) {
	c.mu.Lock()
	h, ok := c.handlers[ev.Type]
	if !ok {
		h = c.handlers[""]
	}
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
