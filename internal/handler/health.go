// Package handler contains the HTTP handlers of the PieceMeal API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (query params for GET, a JSON body for POST)
// 2. Call the service layer
// 3. Write the response envelope described in response.go
//
// Handlers hold no business rules. Anything beyond parsing and mapping
// errors to codes belongs in internal/service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the one thing the health check needs from the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers load balancer probes.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleHealth reports 503 when the database does not answer within two
// seconds.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeFail(w, http.StatusServiceUnavailable, CodeGeneral, "database unavailable")
		return
	}
	writeOK(w, fields{"status": "ok"})
}
