package handler

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/go-chi/chi/v5"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/internal/infra/http/middleware"
	"github.com/vibescan/api/internal/infra/websocket"
	"github.com/vibescan/api/pkg/logger"
)

// WSHandler upgrades scan-progress subscriptions to websocket
// connections.
type WSHandler struct {
	hub      *websocket.Hub
	findings *app.FindingService
	upgrader gorilla.Upgrader
	logger   *logger.Logger
}

// NewWSHandler creates a new WSHandler. allowedOrigins mirrors the
// CORS configuration; an empty list allows same-origin only.
func NewWSHandler(hub *websocket.Hub, findings *app.FindingService, allowedOrigins []string, log *logger.Logger) *WSHandler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &WSHandler{
		hub:      hub,
		findings: findings,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || allowed[origin]
			},
		},
		logger: log.With("handler", "ws"),
	}
}

// WatchScan subscribes the caller to one scan's progress events. The
// scan must belong to the authenticated user.
func (h *WSHandler) WatchScan(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}
	scanID, ok := pathID(w, r, chi.URLParam(r, "id"), "scan id")
	if !ok {
		return
	}

	if _, err := h.findings.GetScan(r.Context(), userID, scanID); err != nil {
		handleServiceError(w, r, h.logger, "Scan", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.logger.WithContext(r.Context()).Debug("websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, middleware.GetUserID(r.Context()), scanID.String(), h.logger)
	h.hub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()
}
