// Package fanout pushes newly created and updated alerts to connected
// websocket clients. Channels are keyed by tenant: a client is pinned to
// exactly one tenant at registration time and only ever receives events
// published for that tenant. Delivery is live-only; clients that reconnect
// re-fetch open alerts over HTTP to catch up.
package fanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds delivered to subscribers.
const (
	EventNewAlert       = "new_alert"
	EventCriticalAlert  = "critical_alert"
	EventAlertUpdated   = "alert_updated"
	EventOpenAlertCount = "open_alerts_count"
)

// Event is a single real-time notification.
type Event struct {
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single connected subscriber, pinned to one tenant.
type Client struct {
	ID       string
	TenantID string
	Send     chan []byte
	conn     Conn
}

// Hub tracks connected clients per tenant. All operations are safe for
// concurrent use.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		tenants: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client under its tenant channel. Clients without a tenant
// are refused; an unscoped subscriber would be a cross-tenant leak.
func (h *Hub) Register(client *Client) bool {
	if client.TenantID == "" {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tenants[client.TenantID] == nil {
		h.tenants[client.TenantID] = make(map[*Client]struct{})
	}
	h.tenants[client.TenantID][client] = struct{}{}
	return true
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.tenants[client.TenantID]
	if !ok {
		return
	}
	if _, ok := subscribers[client]; !ok {
		return
	}

	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.tenants, client.TenantID)
	}
	close(client.Send)
}

// Publish delivers an event to every subscriber of the given tenant and to
// no one else. Slow clients are skipped rather than blocking the publisher;
// they self-heal by re-fetching open alerts.
func (h *Hub) Publish(tenantID string, event Event) {
	event.TenantID = tenantID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event.Type).Msg("fanout: marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.tenants[tenantID] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; drop rather than block. The client
			// catches up on its next open-alerts fetch.
			h.logger.Debug().
				Str("tenant_id", tenantID).
				Str("client_id", client.ID).
				Str("event", event.Type).
				Msg("fanout: dropping event for slow client")
		}
	}
}

// PublishData marshals payload and publishes it as an event of the given type.
func (h *Hub) PublishData(tenantID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", eventType).Msg("fanout: marshal payload")
		return
	}
	h.Publish(tenantID, Event{Type: eventType, Data: data})
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subscribers := range h.tenants {
		n += len(subscribers)
	}
	return n
}

// TenantCount returns the number of clients subscribed for one tenant.
func (h *Hub) TenantCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}
