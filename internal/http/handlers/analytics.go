package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/airobot/server/internal/analytics"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	svc    *analytics.Service
	logger *zap.Logger
}

func NewAnalyticsHandler(svc *analytics.Service, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// report adapts one analytics query to a handler that reads ?days=.
func report[T any](h *AnalyticsHandler, key string, fn func(context.Context, uint, int) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days")
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		v, err := fn(r.Context(), userID(r), days)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		window, _ := analytics.NormalizeDays(days)
		respond.OK(w, map[string]any{key: v, "days": window})
	}
}

func (h *AnalyticsHandler) HandleDeviceUsage() http.HandlerFunc {
	return report(h, "deviceUsage", h.svc.DeviceUsage)
}

func (h *AnalyticsHandler) HandleActionUsage() http.HandlerFunc {
	return report(h, "actionUsage", h.svc.ActionUsage)
}

func (h *AnalyticsHandler) HandleConversationTrend() http.HandlerFunc {
	return report(h, "trend", h.svc.ConversationTrend)
}

func (h *AnalyticsHandler) HandleActivationRate() http.HandlerFunc {
	return report(h, "activation", h.svc.ActivationRate)
}

func (h *AnalyticsHandler) HandleAIResponseStats() http.HandlerFunc {
	return report(h, "aiResponse", h.svc.AIResponseStats)
}

func (h *AnalyticsHandler) HandleComprehensive() http.HandlerFunc {
	return report(h, "report", h.svc.Comprehensive)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HandleExport handles GET /api/analytics/export?days= and streams a workbook.
func (h *AnalyticsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	b, err := h.svc.Export(r.Context(), userID(r), days)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	name := fmt.Sprintf("analytics-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
