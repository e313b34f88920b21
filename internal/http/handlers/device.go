package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/device"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	svc    *device.Service
	logger *zap.Logger
}

func NewDeviceHandler(svc *device.Service, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{svc: svc, logger: logger}
}

// HandleList handles GET /api/devices?search=&status=&type=&page=&limit=
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := h.svc.List(r.Context(), userID(r), device.Filter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Type:   q.Get("type"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, res)
}

func (h *DeviceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	d, err := h.svc.Get(r.Context(), userID(r), id)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"device": d})
}

type createDeviceRequest struct {
	DeviceName string `json:"deviceName" validate:"required,max=100"`
	DeviceType string `json:"deviceType" validate:"required,max=50"`
}

func (h *DeviceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	d, err := h.svc.Create(r.Context(), userID(r), device.CreateInput{Name: req.DeviceName, Type: req.DeviceType})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"device": d}, "device created")
}

type updateDeviceRequest struct {
	DeviceName *string `json:"deviceName" validate:"omitempty,max=100"`
	DeviceType *string `json:"deviceType" validate:"omitempty,max=50"`
	Status     *string `json:"status" validate:"omitempty,oneof=online offline"`
}

func (h *DeviceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req updateDeviceRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	d, err := h.svc.Update(r.Context(), userID(r), id, device.UpdateInput{
		Name:   req.DeviceName,
		Type:   req.DeviceType,
		Status: req.Status,
	})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"device": d})
}

func (h *DeviceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID(r), id); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "device deleted"})
}

type batchRequest struct {
	DeviceIDs []uint `json:"deviceIds" validate:"required,min=1,dive,gt=0"`
	Status    string `json:"status"`
}

// HandleBatchDelete handles POST /api/devices/batch-delete
func (h *DeviceHandler) HandleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	ids, err := h.svc.BatchDelete(r.Context(), userID(r), req.DeviceIDs)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"deletedIds": ids, "count": len(ids)})
}

// HandleBatchUpdateStatus handles POST /api/devices/batch-update-status
func (h *DeviceHandler) HandleBatchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	ids, err := h.svc.BatchUpdateStatus(r.Context(), userID(r), req.DeviceIDs, req.Status)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"updatedIds": ids, "count": len(ids)})
}

type heartbeatRequest struct {
	DeviceID uint `json:"deviceId" validate:"required,gt=0"`
}

// HandleHeartbeat handles POST /api/device-heartbeat/heartbeat
func (h *DeviceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	d, err := h.svc.Heartbeat(r.Context(), req.DeviceID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"deviceId": d.ID, "status": d.Status, "lastSeenAt": d.LastSeenAt})
}

// HandleOffline handles POST /api/device-heartbeat/offline
func (h *DeviceHandler) HandleOffline(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	d, err := h.svc.Offline(r.Context(), req.DeviceID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"deviceId": d.ID, "status": d.Status})
}
