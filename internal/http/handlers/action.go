package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/airobot/server/internal/catalog"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type ActionHandler struct {
	svc    *catalog.Service
	logger *zap.Logger
}

func NewActionHandler(svc *catalog.Service, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{svc: svc, logger: logger}
}

func (h *ActionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actions, err := h.svc.List(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"actions": actions})
}

func (h *ActionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"action": a})
}

type actionRequest struct {
	Name        *string         `json:"name" validate:"omitempty,max=100"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
	Type        *string         `json:"type"`
	Duration    *float64        `json:"duration"`
	Steps       json.RawMessage `json:"steps"`
}

func (req actionRequest) input() catalog.Input {
	return catalog.Input{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Duration:    req.Duration,
		Steps:       req.Steps,
	}
}

func (h *ActionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	a, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"action": a}, "action created")
}

func (h *ActionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req actionRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	a, err := h.svc.Update(r.Context(), id, req.input())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"action": a})
}

func (h *ActionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "action deleted"})
}

type executeRequest struct {
	ActionID uint `json:"actionId" validate:"required,gt=0"`
}

// HandleExecute handles POST /api/actions/execute
func (h *ActionHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.svc.Execute(r.Context(), req.ActionID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "action executed", Data: map[string]any{"result": res}})
}
