// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The service binds to localhost for editor clients; same-origin
	// checks do not apply.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans diagnostics events out to websocket subscribers.
//
// Thread Safety: safe for concurrent use.
type hub struct {
	mu     sync.RWMutex
	subs   map[string]chan StreamEvent
	buffer int
	logger *slog.Logger
}

func newHub(buffer int, logger *slog.Logger) *hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &hub{
		subs:   make(map[string]chan StreamEvent),
		buffer: buffer,
		logger: logger,
	}
}

// hasSubscribers reports whether anyone is listening. The edit path
// checks this before computing diagnostics nobody would receive.
func (h *hub) hasSubscribers() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs) > 0
}

// broadcast delivers ev to every subscriber. A subscriber whose
// buffer is full loses the event; diagnostics are re-published on the
// next commit, so a dropped event only delays, never corrupts.
func (h *hub) broadcast(ev StreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Stream subscriber slow, dropping event",
				"subscriber", id, "file", ev.File)
		}
	}
}

func (h *hub) subscribe() (string, chan StreamEvent) {
	id := uuid.NewString()
	ch := make(chan StreamEvent, h.buffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// serve upgrades the connection and streams events until the client
// disconnects.
func (h *hub) serve(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := h.subscribe()
	defer h.unsubscribe(id)
	h.logger.Info("Stream subscriber connected", "subscriber", id)

	// Drain the read side so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("Stream subscriber disconnected", "subscriber", id)
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("Stream write failed", "subscriber", id, "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
