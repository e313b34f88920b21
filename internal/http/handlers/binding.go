package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/binding"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type BindingHandler struct {
	svc    *binding.Service
	logger *zap.Logger
}

func NewBindingHandler(svc *binding.Service, logger *zap.Logger) *BindingHandler {
	return &BindingHandler{svc: svc, logger: logger}
}

// HandleList handles GET /api/device-actions/{deviceId}
func (h *BindingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceId")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	views, err := h.svc.List(r.Context(), userID(r), deviceID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"deviceActions": views})
}

type createBindingRequest struct {
	DeviceID uint   `json:"deviceId" validate:"required,gt=0"`
	ActionID uint   `json:"actionId" validate:"required,gt=0"`
	Prompt   string `json:"prompt" validate:"required,max=500"`
}

func (h *BindingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	v, err := h.svc.Add(r.Context(), userID(r), req.DeviceID, req.ActionID, req.Prompt)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"deviceAction": v}, "action bound to device")
}

type updateBindingRequest struct {
	Prompt string `json:"prompt" validate:"required,max=500"`
}

func (h *BindingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req updateBindingRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	v, err := h.svc.Update(r.Context(), userID(r), id, req.Prompt)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"deviceAction": v})
}

func (h *BindingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID(r), id); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "binding removed"})
}
