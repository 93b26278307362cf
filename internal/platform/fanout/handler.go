package fanout

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections to websockets and registers them with
// the hub under the tenant resolved from the handshake.
type Handler struct {
	hub       *Hub
	jwtSecret string
}

// NewHandler creates a Handler. When jwtSecret is non-empty the handshake
// requires a valid HMAC token carrying a tenant_id claim, and the socket is
// pinned to that tenant regardless of any header the client also sent.
func NewHandler(hub *Hub, jwtSecret string) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret}
}

// RegisterRoutes registers the websocket endpoint on the provided Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws/alerts", h.HandleConnect)
}

// HandleConnect authenticates the handshake, upgrades the connection, and
// starts the read/write pumps.
func (h *Handler) HandleConnect(c echo.Context) error {
	tenantID, err := h.resolveTenant(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Send:     make(chan []byte, 256),
		conn:     &gorillaConnAdapter{ws},
	}

	if !h.hub.Register(client) {
		ws.Close()
		return nil
	}

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// resolveTenant derives the socket's tenant from the handshake token, or from
// the X-Tenant-ID header when no JWT secret is configured (development).
func (h *Handler) resolveTenant(c echo.Context) (string, error) {
	if h.jwtSecret == "" {
		tid := c.Request().Header.Get("X-Tenant-ID")
		if tid == "" {
			tid = c.QueryParam("tenant_id")
		}
		if tid == "" {
			return "", fmt.Errorf("tenant is required")
		}
		return tid, nil
	}

	raw := c.QueryParam("token")
	if raw == "" {
		auth := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if raw == "" {
		return "", fmt.Errorf("token is required")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	tid, _ := claims["tenant_id"].(string)
	if tid == "" {
		return "", fmt.Errorf("token has no tenant_id claim")
	}
	return tid, nil
}

// readPump drains inbound messages until the connection drops. Clients have
// nothing to say to the server; the read loop exists to detect disconnects.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump writes messages from the Send channel to the connection.
func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
