package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/dispatch"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type ChatHandler struct {
	pipeline *dispatch.Pipeline
	logger   *zap.Logger
}

func NewChatHandler(p *dispatch.Pipeline, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, logger: logger}
}

type chatRequest struct {
	DeviceID uint   `json:"deviceId" validate:"required,gt=0"`
	Message  string `json:"message" validate:"required,max=2000"`
}

// HandleSend handles POST /api/chat
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	turn, err := h.pipeline.Dispatch(r.Context(), userID(r), req.DeviceID, req.Message)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"conversation": turn})
}

// HandleHistory handles GET /api/chat/{deviceId}?limit=
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	convs, err := h.pipeline.History(r.Context(), userID(r), deviceID, limit)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"conversations": convs})
}
