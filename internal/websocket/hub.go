package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub keeps the latest report and pushes it to every connected client.
// Reports are produced on a timer and on demand; a slow client misses
// updates instead of stalling the others.
type Hub struct {
	produce func() ([]byte, error)
	logger  *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  []byte

	refreshCh chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

// NewHub returns a Hub publishing whatever produce returns.
func NewHub(produce func() ([]byte, error), logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		produce:   produce,
		logger:    logger,
		clients:   make(map[*Client]struct{}),
		refreshCh: make(chan struct{}, 1),
		ready:     make(chan struct{}),
	}
}

// Run produces a report immediately, then every interval and after each
// Refresh, until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.update()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("report hub: shutting down")
			return
		case <-ticker.C:
			h.update()
		case <-h.refreshCh:
			h.update()
		}
	}
}

// Refresh asks Run for a new report. Requests coalesce.
func (h *Hub) Refresh() {
	select {
	case h.refreshCh <- struct{}{}:
	default:
	}
}

// WaitReady blocks until the first report exists or timeout passes.
func (h *Hub) WaitReady(timeout time.Duration) bool {
	select {
	case <-h.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Latest returns the most recent report, or nil before the first one.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) update() {
	data, err := h.produce()
	if err != nil {
		h.logger.Error("report hub: producing report failed", "error", err)
		return
	}
	h.mu.Lock()
	h.latest = data
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	h.readyOnce.Do(func() { close(h.ready) })

	for _, c := range clients {
		c.offer(data)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	latest := h.latest
	h.mu.Unlock()
	if latest != nil {
		c.offer(latest)
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}
