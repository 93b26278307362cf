package fanout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.New(os.Stderr))
}

func newTestClient(tenantID string) *Client {
	return &Client{
		ID:       tenantID + "-client",
		TenantID: tenantID,
		Send:     make(chan []byte, 8),
	}
}

func recv(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_RegisterRequiresTenant(t *testing.T) {
	h := newTestHub()
	if h.Register(&Client{ID: "x", Send: make(chan []byte, 1)}) {
		t.Error("expected registration without tenant to be refused")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestHub_PublishReachesTenantSubscribers(t *testing.T) {
	h := newTestHub()
	a1 := newTestClient("tenant_a")
	a2 := newTestClient("tenant_a")
	h.Register(a1)
	h.Register(a2)

	h.PublishData("tenant_a", EventNewAlert, map[string]string{"alert_id": "42"})

	for _, c := range []*Client{a1, a2} {
		ev := recv(t, c)
		if ev.Type != EventNewAlert {
			t.Errorf("expected %s, got %s", EventNewAlert, ev.Type)
		}
		if ev.TenantID != "tenant_a" {
			t.Errorf("expected tenant_a, got %s", ev.TenantID)
		}
	}
}

func TestHub_TenantIsolation(t *testing.T) {
	h := newTestHub()
	a := newTestClient("tenant_a")
	b := newTestClient("tenant_b")
	h.Register(a)
	h.Register(b)

	// Interleave publishes for both tenants.
	for i := 0; i < 4; i++ {
		h.PublishData("tenant_a", EventNewAlert, map[string]int{"seq": i})
		h.PublishData("tenant_b", EventAlertUpdated, map[string]int{"seq": i})
	}

	for i := 0; i < 4; i++ {
		if ev := recv(t, a); ev.TenantID != "tenant_a" || ev.Type != EventNewAlert {
			t.Errorf("tenant_a subscriber got foreign event %+v", ev)
		}
		if ev := recv(t, b); ev.TenantID != "tenant_b" || ev.Type != EventAlertUpdated {
			t.Errorf("tenant_b subscriber got foreign event %+v", ev)
		}
	}

	// Nothing left over on either channel.
	select {
	case data := <-a.Send:
		t.Errorf("unexpected extra event for tenant_a: %s", data)
	case data := <-b.Send:
		t.Errorf("unexpected extra event for tenant_b: %s", data)
	default:
	}
}

func TestHub_ConcurrentPublishIsolation(t *testing.T) {
	h := newTestHub()
	a := &Client{ID: "a", TenantID: "tenant_a", Send: make(chan []byte, 1024)}
	b := &Client{ID: "b", TenantID: "tenant_b", Send: make(chan []byte, 1024)}
	h.Register(a)
	h.Register(b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		tenant := "tenant_a"
		if i%2 == 1 {
			tenant = "tenant_b"
		}
		go func(tenant string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.PublishData(tenant, EventNewAlert, map[string]int{"seq": j})
			}
		}(tenant)
	}
	wg.Wait()

	drain := func(c *Client, want string) {
		for {
			select {
			case data := <-c.Send:
				var ev Event
				if err := json.Unmarshal(data, &ev); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if ev.TenantID != want {
					t.Fatalf("client for %s received event for %s", want, ev.TenantID)
				}
			default:
				return
			}
		}
	}
	drain(a, "tenant_a")
	drain(b, "tenant_b")
}

func TestHub_PublishToEmptyTenantIsNoop(t *testing.T) {
	h := newTestHub()
	h.PublishData("tenant_none", EventNewAlert, map[string]string{"alert_id": "1"})
	if h.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", h.ClientCount())
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := newTestHub()
	c := newTestClient("tenant_a")
	h.Register(c)
	h.Unregister(c)

	if _, open := <-c.Send; open {
		t.Error("expected Send channel to be closed")
	}
	if h.TenantCount("tenant_a") != 0 {
		t.Errorf("expected 0 subscribers, got %d", h.TenantCount("tenant_a"))
	}

	// Double unregister must not panic or close twice.
	h.Unregister(c)
}

func TestHub_SlowClientIsSkipped(t *testing.T) {
	h := newTestHub()
	c := &Client{ID: "slow", TenantID: "tenant_a", Send: make(chan []byte, 1)}
	h.Register(c)

	h.PublishData("tenant_a", EventNewAlert, map[string]int{"seq": 1})
	h.PublishData("tenant_a", EventNewAlert, map[string]int{"seq": 2}) // dropped

	ev := recv(t, c)
	if ev.Type != EventNewAlert {
		t.Errorf("expected first event, got %+v", ev)
	}
	select {
	case data := <-c.Send:
		t.Errorf("expected second event to be dropped, got %s", data)
	default:
	}
}

// -- Handshake tenant resolution --

func signToken(t *testing.T, secret, tenantID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": tenantID,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func resolveWith(t *testing.T, h *Handler, target string, header http.Header) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return h.resolveTenant(c)
}

func TestResolveTenant_FromToken(t *testing.T) {
	h := NewHandler(newTestHub(), "hush")
	token := signToken(t, "hush", "tenant_a")

	tid, err := resolveWith(t, h, "/ws/alerts?token="+token, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tid != "tenant_a" {
		t.Errorf("expected tenant_a, got %q", tid)
	}
}

func TestResolveTenant_FromBearerHeader(t *testing.T) {
	h := NewHandler(newTestHub(), "hush")
	token := signToken(t, "hush", "tenant_b")

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	tid, err := resolveWith(t, h, "/ws/alerts", hdr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tid != "tenant_b" {
		t.Errorf("expected tenant_b, got %q", tid)
	}
}

func TestResolveTenant_RejectsBadSignature(t *testing.T) {
	h := NewHandler(newTestHub(), "hush")
	token := signToken(t, "wrong-secret", "tenant_a")

	if _, err := resolveWith(t, h, "/ws/alerts?token="+token, nil); err == nil {
		t.Error("expected error for token signed with wrong secret")
	}
}

func TestResolveTenant_RejectsMissingClaim(t *testing.T) {
	h := NewHandler(newTestHub(), "hush")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString([]byte("hush"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := resolveWith(t, h, "/ws/alerts?token="+signed, nil); err == nil {
		t.Error("expected error for token without tenant_id claim")
	}
}

func TestResolveTenant_DevFallbackUsesHeader(t *testing.T) {
	h := NewHandler(newTestHub(), "")

	hdr := http.Header{}
	hdr.Set("X-Tenant-ID", "tenant_dev")
	tid, err := resolveWith(t, h, "/ws/alerts", hdr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tid != "tenant_dev" {
		t.Errorf("expected tenant_dev, got %q", tid)
	}

	if _, err := resolveWith(t, h, "/ws/alerts", nil); err == nil {
		t.Error("expected error when no tenant is supplied at all")
	}
}

func TestHub_EventTimestampDefaulted(t *testing.T) {
	h := newTestHub()
	c := newTestClient("tenant_a")
	h.Register(c)

	h.Publish("tenant_a", Event{Type: EventOpenAlertCount, Data: json.RawMessage(`{"count":3}`)})
	ev := recv(t, c)
	if ev.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Count != 3 {
		t.Errorf("unexpected payload %s (err %v)", ev.Data, err)
	}
}
