package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/device"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type GroupHandler struct {
	svc    *device.Service
	logger *zap.Logger
}

func NewGroupHandler(svc *device.Service, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

func (h *GroupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListGroups(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"groups": groups})
}

func (h *GroupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	g, err := h.svc.GetGroup(r.Context(), userID(r), id)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"group": g})
}

type groupRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (h *GroupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var name, desc string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		desc = *req.Description
	}
	g, err := h.svc.CreateGroup(r.Context(), userID(r), name, desc)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"group": g}, "group created")
}

func (h *GroupHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req groupRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	g, err := h.svc.UpdateGroup(r.Context(), userID(r), id, req.Name, req.Description)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"group": g})
}

func (h *GroupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.DeleteGroup(r.Context(), userID(r), id); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "group deleted"})
}

type membershipRequest struct {
	GroupID  uint `json:"groupId" validate:"required,gt=0"`
	DeviceID uint `json:"deviceId" validate:"required,gt=0"`
}

// HandleAddDevice handles POST /api/device-groups/add-device
func (h *GroupHandler) HandleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.AddToGroup(r.Context(), userID(r), req.GroupID, req.DeviceID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "device added to group"})
}

// HandleRemoveDevice handles POST /api/device-groups/remove-device
func (h *GroupHandler) HandleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.RemoveFromGroup(r.Context(), userID(r), req.GroupID, req.DeviceID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "device removed from group"})
}
