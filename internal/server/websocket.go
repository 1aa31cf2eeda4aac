// -----------------------------------------------------------------------
// StatusHub streams periodic element-count snapshots to connected
// operators, grounded on the teacher's WebSocketHandler broadcast pattern.
// -----------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/models"
	"github.com/ternarybob/workqueue/internal/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusHub fans out MonitorWorkQueue snapshots to every connected client.
type StatusHub struct {
	logger arbor.ILogger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStatusHub returns an idle hub; call StartBroadcaster to begin polling.
func NewStatusHub(logger arbor.ILogger) *StatusHub {
	return &StatusHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		stopCh:  make(chan struct{}),
	}
}

type statusMessage struct {
	Type      string         `json:"type"`
	Counts    map[string]int `json:"counts"`
	Timestamp time.Time      `json:"timestamp"`
}

// HandleStream upgrades r to a websocket connection and registers it for
// broadcasts until the client disconnects.
func (h *StatusHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade status stream connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().Int("clients", clientCount).Msg("status stream client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info().Int("clients", remaining).Msg("status stream client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("status stream read error")
			}
			return
		}
	}
}

// Broadcast sends counts to every connected client.
func (h *StatusHub) Broadcast(counts map[models.Status]int) {
	byName := make(map[string]int, len(counts))
	for status, n := range counts {
		byName[string(status)] = n
	}
	data, err := json.Marshal(statusMessage{Type: "status", Counts: byName, Timestamp: time.Now()})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal status stream message")
		return
	}

	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		targets[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range targets {
		mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Msg("failed to write status stream message")
		}
	}
}

// StartBroadcaster polls the engine's status counts on interval and pushes
// them to every connected client, until Stop is called.
func (h *StatusHub) StartBroadcaster(engine *queue.Engine, interval string) {
	d := common.ParseDurationOrDefault(interval, 30*time.Second)
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.mu.RLock()
				hasClients := len(h.clients) > 0
				h.mu.RUnlock()
				if !hasClients {
					continue
				}
				counts, err := engine.MonitorWorkQueue(context.Background())
				if err != nil {
					h.logger.Warn().Err(err).Msg("status stream monitor query failed")
					continue
				}
				h.Broadcast(counts)
			}
		}
	}()
}

// Stop halts the broadcaster goroutine.
func (h *StatusHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
