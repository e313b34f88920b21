package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/airobot/server/internal/http/respond"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respond.Write(w, respond.Result{
			Status:  http.StatusServiceUnavailable,
			Message: "database unavailable",
			Data:    map[string]string{"status": "unhealthy"},
		})
		return
	}
	respond.OK(w, map[string]string{"status": "ok"})
}
