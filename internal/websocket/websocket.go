// Package websocket 提供显卡报告的 WebSocket 推送功能
package websocket

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/auth"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 8 * 1024

	wsMsgRatePerSec = 2
	wsMsgBurst      = 5
)

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{} // closed when connection ends
	closeOnce sync.Once
	logger    *slog.Logger
}

// offer queues data without blocking; a full queue drops the update.
func (c *Client) offer(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

// Handler upgrades /ws/report requests and attaches them to a Hub.
type Handler struct {
	hub            *Hub
	auth           *auth.Authenticator
	allowedOrigins []string
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewHandler returns a Handler. a may be nil to disable authentication.
func NewHandler(hub *Hub, a *auth.Authenticator, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{hub: hub, auth: a, allowedOrigins: allowedOrigins, logger: logger}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:  h.isAllowedOrigin,
		Subprotocols: []string{"jwt"},
	}
	return h
}

func (h *Handler) isAllowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients often omit Origin.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		h.logger.Warn("ws origin parse error", "origin", origin, "error", err)
		return false
	}
	originHost := strings.ToLower(u.Hostname())
	if originHost == "" {
		return false
	}

	for _, entry := range h.allowedOrigins {
		// Full origin match, e.g. https://example.com
		if strings.EqualFold(entry, origin) {
			return true
		}
		// Hostname match, e.g. example.com
		if strings.EqualFold(entry, originHost) {
			return true
		}
		// If entry is a URL, compare hostname.
		if strings.Contains(entry, "://") {
			if eu, err := url.Parse(entry); err == nil && strings.EqualFold(eu.Hostname(), originHost) {
				return true
			}
		}
	}

	// Determine the effective host from request headers (support reverse proxy).
	reqHost := r.Host
	if xf := r.Header.Get("X-Forwarded-Host"); xf != "" {
		reqHost = strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	reqHost = strings.ToLower(strings.TrimSpace(reqHost))
	if hostOnly, _, err := net.SplitHostPort(reqHost); err == nil {
		reqHost = hostOnly
	}
	if originHost == reqHost {
		return true
	}

	h.logger.Warn("ws origin mismatch", "origin_host", originHost, "req_host", reqHost)
	return false
}

func tokenFromWebSocketSubprotocol(r *http.Request) string {
	h := r.Header.Get("Sec-WebSocket-Protocol")
	if h == "" {
		return ""
	}
	for _, p := range strings.Split(h, ",") {
		p = strings.TrimSpace(p)
		if p == "" || p == "jwt" {
			continue
		}
		if strings.Count(p, ".") == 2 {
			return p
		}
	}
	return ""
}

func (h *Handler) token(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	if t := tokenFromWebSocketSubprotocol(r); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP 处理WebSocket连接
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		token := h.token(r)
		if token == "" {
			h.unauthorized(w, r, "missing token")
			return
		}
		if _, err := h.auth.Validate(token); err != nil {
			h.unauthorized(w, r, err.Error())
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 16),
		done:   make(chan struct{}),
		logger: h.logger.With("remote", r.RemoteAddr),
	}
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.Warn("ws unauthorized", "reason", reason, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		c.conn.Close()
	})
}

// readPump reads client requests. {"type":"refresh"} asks the hub for a
// new report.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	lim := rate.NewLimiter(rate.Limit(wsMsgRatePerSec), wsMsgBurst)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("ws read error", "error", err)
			}
			return
		}
		if !lim.Allow() {
			c.logger.Warn("ws client message rate limit exceeded")
			return
		}

		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		if req.Type == "refresh" {
			c.hub.Refresh()
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
