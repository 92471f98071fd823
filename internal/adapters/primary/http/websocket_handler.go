package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/workload-insights/internal/adapters/primary/websocket"
	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/config"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
)

// originPolicy decides which browser origins may open an alert stream.
// Entries are hosts such as "dash.example.com" or wildcards "*.example.com".
type originPolicy struct {
	allowAll bool
	hosts    []string
}

func (p originPolicy) allows(origin string) bool {
	// Non-browser clients send no Origin.
	if p.allowAll || origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, entry := range p.hosts {
		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if u.Host == suffix || strings.HasSuffix(u.Host, "."+suffix) {
				return true
			}
		} else if u.Host == entry {
			return true
		}
	}
	return false
}

// WebSocketHandler upgrades dashboard connections that receive risk alerts.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	tm       *auth.TokenManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the alert stream endpoint. With allowAnyOrigin
// set, as in development, the origin check is skipped.
func NewWebSocketHandler(hub *wsAdapter.Hub, tm *auth.TokenManager, cfg config.WebSocketConfig, allowAnyOrigin bool, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:    hub,
		tm:     tm,
		logger: logger.With("component", "websocket_handler"),
	}

	policy := originPolicy{allowAll: allowAnyOrigin, hosts: cfg.AllowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if policy.allows(origin) {
				return true
			}
			h.logger.WarnContext(r.Context(), "websocket origin rejected",
				"origin", origin,
				"allowed_origins", policy.hosts,
			)
			return false
		},
	}
	return h
}

// streamToken prefers an Authorization header, which non-browser clients
// can set, over the "token" query parameter browsers must use.
func streamToken(r *http.Request) string {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return bearer
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP authenticates the caller, upgrades the connection and hands
// the client to the hub.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := streamToken(r)
	if token == "" {
		h.reject(w, r, "Missing authentication token")
		return
	}
	claims, err := h.tm.ValidateToken(token)
	if err != nil {
		h.logger.DebugContext(ctx, "websocket token rejected", "error", err)
		h.reject(w, r, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"employee_id", claims.EmployeeID,
			"error", err,
		)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, claims.EmployeeID, claims.Role, claims.CanManageAlerts(), h.logger)
	h.hub.Register <- client
	h.logger.InfoContext(ctx, "websocket client connected",
		"employee_id", claims.EmployeeID,
		"role", claims.Role,
	)

	client.Start()
}

func (h *WebSocketHandler) reject(w http.ResponseWriter, r *http.Request, message string) {
	h.logger.WarnContext(r.Context(), "websocket connection rejected",
		"reason", message,
		"remote_addr", r.RemoteAddr,
	)
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error: message,
		Code:  apperrors.NewUnauthorizedError(message).Code,
	})
}
