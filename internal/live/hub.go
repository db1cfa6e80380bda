// Package live streams tally updates of a session to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

type message struct {
	sessionID string
	data      []byte
}

// Client is one websocket connection following a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case c := <-h.register:
			conns := h.clients[c.sessionID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[c.sessionID] = conns
			}
			conns[c] = true

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			for c := range h.clients[m.sessionID] {
				select {
				case c.send <- m.data:
				default:
					// slow consumer
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	conns := h.clients[c.sessionID]
	if conns == nil {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.sessionID)
	}
}

// Publish queues v for every client of the session. It never blocks; when
// the hub is saturated the update is dropped and the next one supersedes it.
func (h *Hub) Publish(sessionID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("live update encode failed", "session_id", sessionID, "error", err)
		return
	}
	select {
	case h.broadcast <- message{sessionID: sessionID, data: data}:
	default:
		slog.Warn("live hub saturated, dropping update", "session_id", sessionID)
	}
}

// Serve registers conn for sessionID, sends initial when non-nil, and
// blocks until the connection ends.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, sessionID string, initial any) {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, 16), sessionID: sessionID}

	if initial != nil {
		data, err := json.Marshal(initial)
		if err == nil {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
		}
		if err != nil {
			conn.Close(websocket.StatusInternalError, "")
			return
		}
	}

	select {
	case h.register <- c:
	case <-ctx.Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	// clients only listen; reading keeps control frames flowing and notices
	// the close
	readCtx := conn.CloseRead(ctx)
	c.writePump(readCtx)

	select {
	case h.unregister <- c:
	case <-time.After(time.Second):
	}
}

func (c *Client) writePump(ctx context.Context) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, m)
			cancel()
			if err != nil {
				slog.Debug("live write failed", "session_id", c.sessionID, "error", err)
				return
			}
		}
	}
}
