// Package realtime pushes message lifecycle events to connected clients and
// merges those events back into conversation views.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"vetline/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Event kinds pushed over the socket. Append/supersede/remove carry the
// optimistic placeholder lifecycle; inserted announces a persisted inbound
// row.
const (
	EventAppend    = "append"
	EventSupersede = "supersede"
	EventRemove    = "remove"
	EventInserted  = "message-inserted"
)

type Event struct {
	Type      string          `json:"type"`
	ClinicID  string          `json:"clinicId"`
	TempID    string          `json:"tempId,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// subscriberBuffer bounds the per-connection send queue. A subscriber that
// cannot keep up loses events rather than blocking the publishers.
const subscriberBuffer = 32

type subscriber struct {
	clinicID string
	events   chan []byte
}

// Hub fans events out to websocket subscribers, scoped per clinic. It is the
// realtime sink for both ingestion (inserted events) and the send
// coordinator (placeholder lifecycle).
type Hub struct {
	logger *logrus.Logger

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Publish announces a persisted message to the clinic's subscribers.
func (h *Hub) Publish(clinicID string, msg models.Message) {
	h.broadcast(Event{Type: EventInserted, ClinicID: clinicID, Message: &msg})
}

// Append announces an optimistic placeholder.
func (h *Hub) Append(clinicID string, msg models.Message) {
	h.broadcast(Event{Type: EventAppend, ClinicID: clinicID, TempID: msg.ID, Message: &msg})
}

// Supersede replaces a placeholder with its confirmed message.
func (h *Hub) Supersede(clinicID, tempID string, msg models.Message) {
	h.broadcast(Event{Type: EventSupersede, ClinicID: clinicID, TempID: tempID, Message: &msg})
}

// Remove rolls a placeholder back after a failed send.
func (h *Hub) Remove(clinicID, tempID string) {
	h.broadcast(Event{Type: EventRemove, ClinicID: clinicID, TempID: tempID})
}

func (h *Hub) broadcast(ev Event) {
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode realtime event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.clinicID != ev.ClinicID {
			continue
		}
		select {
		case sub.events <- data:
		default:
			// Slow consumer; it resyncs on its next full fetch.
		}
	}
}

// SubscriberCount reports active connections for a clinic.
func (h *Hub) SubscriberCount(clinicID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for sub := range h.subscribers {
		if sub.clinicID == clinicID {
			n++
		}
	}
	return n
}

func (h *Hub) subscribe(clinicID string) *subscriber {
	sub := &subscriber{
		clinicID: clinicID,
		events:   make(chan []byte, subscriberBuffer),
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}

// HandleWebSocket upgrades the request and streams the clinic's events until
// the client disconnects. The connection is write-only; inbound frames are
// drained and ignored.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clinicID := r.URL.Query().Get("clinic")
	if clinicID == "" {
		http.Error(w, "missing clinic parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := h.subscribe(clinicID)
	defer h.unsubscribe(sub)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sub.events:
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
