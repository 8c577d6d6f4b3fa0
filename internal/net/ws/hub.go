package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tstirrat/newthreat/internal/sim"
	"github.com/tstirrat/newthreat/internal/telemetry"
)

// ProtocolVersion is stamped on every stream message.
const ProtocolVersion = 1

// Stream message types.
const (
	TypeEvent   = "event"
	TypeSummary = "summary"
	TypeReset   = "reset"
)

// DefaultHistory is how many messages a late subscriber is replayed.
const DefaultHistory = 10000

// Message is the envelope written to every subscriber.
type Message struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	TraceID string `json:"traceId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteMessage serialises writes; gorilla connections allow one writer.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// History bounds the backlog sent to new subscribers. Zero means
	// DefaultHistory; negative disables the backlog.
	History int
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Hub fans replay output out to websocket subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	history     [][]byte
	limit       int
	seq         uint64

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewHub constructs an empty hub.
func NewHub(cfg HubConfig) *Hub {
	limit := cfg.History
	if limit == 0 {
		limit = DefaultHistory
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		limit:       limit,
		logger:      logger,
		metrics:     metrics,
	}
}

// Subscribe registers conn under id and writes the backlog to it. The
// backlog and registration happen under the hub lock so no broadcast is
// missed or duplicated.
func (h *Hub) Subscribe(id string, conn *websocket.Conn) error {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, data := range h.history {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("write backlog: %w", err)
		}
	}
	if existing, ok := h.subscribers[id]; ok {
		existing.conn.Close()
	}
	h.subscribers[id] = sub
	h.metrics.Store(telemetry.KeyStreamClients, uint64(len(h.subscribers)))
	return nil
}

// Unsubscribe removes id and closes its connection. A stale conn that was
// replaced by a newer subscription under the same id is ignored.
func (h *Hub) Unsubscribe(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok && sub.conn == conn {
		h.removeLocked(id)
	}
}

func (h *Hub) removeLocked(id string) {
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	sub.conn.Close()
	h.metrics.Store(telemetry.KeyStreamClients, uint64(len(h.subscribers)))
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// PublishEvent broadcasts one augmented event.
func (h *Hub) PublishEvent(traceID string, event sim.AugmentedEvent) error {
	return h.broadcast(TypeEvent, traceID, event)
}

// PublishSummary broadcasts the end-of-replay summary.
func (h *Hub) PublishSummary(summary sim.Summary) error {
	return h.broadcast(TypeSummary, summary.TraceID, summary)
}

// Reset clears the backlog and tells subscribers a new replay begins.
func (h *Hub) Reset(traceID string) error {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
	return h.broadcast(TypeReset, traceID, nil)
}

// Emitter adapts the hub to a replay's emit callback.
func (h *Hub) Emitter(traceID string) func(sim.AugmentedEvent) error {
	return func(event sim.AugmentedEvent) error {
		return h.PublishEvent(traceID, event)
	}
}

func (h *Hub) broadcast(kind, traceID string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	data, err := json.Marshal(Message{
		Ver:     ProtocolVersion,
		Type:    kind,
		Seq:     h.seq,
		TraceID: traceID,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", kind, err)
	}

	if h.limit > 0 {
		h.history = append(h.history, data)
		if over := len(h.history) - h.limit; over > 0 {
			h.history = h.history[over:]
		}
	}

	for id, sub := range h.subscribers {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("dropping stream client %s: %v", id, err)
			h.metrics.Add(telemetry.KeyStreamDropped, 1)
			h.removeLocked(id)
		}
	}
	return nil
}

// Close disconnects every subscriber with a normal closure.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay server stopping")
	for id, sub := range h.subscribers {
		sub.WriteMessage(websocket.CloseMessage, message)
		h.removeLocked(id)
	}
}

// write sends data to a single subscriber.
func (h *Hub) write(id string, data []byte) error {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream client %s not subscribed", id)
	}
	return sub.WriteMessage(websocket.TextMessage, data)
}
