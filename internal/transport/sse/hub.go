// Package sse pushes per-user events to open server-sent event streams.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

const (
	// DefaultHeartbeat keeps idle streams alive through proxies.
	DefaultHeartbeat = 25 * time.Second
	subscriberBuffer = 16
)

// Event is one named message on a stream.
type Event struct {
	Name string
	Data []byte
}

type subscriber struct {
	ch chan Event
}

// Hub fans events out to every open stream of a user.
type Hub struct {
	heartbeat time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
	done   chan struct{}
}

// NewHub creates a hub.
func NewHub(heartbeat time.Duration, logger *zap.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		heartbeat: heartbeat,
		logger:    logger,
		subs:      make(map[string]map[*subscriber]struct{}),
		done:      make(chan struct{}),
	}
}

// Connected reports whether userID has at least one open stream.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}

// Subscribe registers a stream for userID. The returned cancel must be called once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[userID]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
			h.mu.Unlock()
			metrics.RealtimeConnections.Dec()
		})
	}
}

// Publish sends a JSON-encoded event to every stream of userID and returns
// how many streams accepted it. A stream whose buffer is full misses the event.
func (h *Hub) Publish(userID, name string, payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s event: %w", name, err)
	}
	ev := Event{Name: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, fmt.Errorf("hub closed: %w", domain.ErrNotificationChannelFailure)
	}
	delivered := 0
	for s := range h.subs[userID] {
		select {
		case s.ch <- ev:
			delivered++
		default:
			h.logger.Warn("realtime stream buffer full, event dropped",
				zap.String("user_id", userID),
				zap.String("event", name),
			)
		}
	}
	return delivered, nil
}

// Serve streams userID's events to w until the client goes away or the hub closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := h.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Close ends every open stream. Publish fails afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}
