// Package device manages a user's robots, their online status and groups.
package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

// StatusNotifier pushes status transitions to the owner's live connections.
type StatusNotifier interface {
	SendDeviceStatusUpdate(userID, deviceID uint, status string)
}

type Service struct {
	devices  repo.DeviceRepo
	groups   repo.GroupRepo
	cache    cache.Cache
	notifier StatusNotifier
	logger   *zap.Logger
}

func NewService(devices repo.DeviceRepo, groups repo.GroupRepo, c cache.Cache, notifier StatusNotifier, logger *zap.Logger) *Service {
	return &Service{devices: devices, groups: groups, cache: c, notifier: notifier, logger: logger.Named("device")}
}

// Filter narrows a device listing. Zero values mean no filtering; Page and
// Limit default to 1 and 20.
type Filter struct {
	Search string
	Status string
	Type   string
	Page   int
	Limit  int
}

type ListResult struct {
	Devices []model.Device `json:"devices"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// List returns the user's devices newest first. The unfiltered list is
// cached; filters and pagination apply to it afterwards.
func (s *Service) List(ctx context.Context, userID uint, f Filter) (ListResult, error) {
	var all []model.Device
	key := cache.DeviceListKey(userID)
	if !s.cache.Get(ctx, key, &all) {
		var err error
		all, err = s.devices.ListByUser(ctx, userID)
		if err != nil {
			return ListResult{}, apperr.Internal("failed to list devices", err)
		}
		s.cache.Set(ctx, key, all, cache.DeviceListTTL)
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	filtered := make([]model.Device, 0, len(all))
	for _, d := range all {
		if search != "" && !strings.Contains(strings.ToLower(d.Name), search) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		filtered = append(filtered, d)
	}

	p := repo.Page{Page: f.Page, Limit: f.Limit}.Normalize(20, 100)
	start := p.Offset()
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + p.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return ListResult{Devices: filtered[start:end], Total: len(filtered), Page: p.Page, Limit: p.Limit}, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (model.Device, error) {
	var d model.Device
	if s.cache.Get(ctx, cache.DeviceKey(id), &d) && d.UserID == userID {
		return d, nil
	}
	d, err := s.devices.GetOwned(ctx, userID, id)
	if err != nil {
		return model.Device{}, notFoundOr(err, "failed to get device")
	}
	s.cache.Set(ctx, cache.DeviceKey(id), d, cache.DeviceTTL)
	return d, nil
}

type CreateInput struct {
	Name string
	Type string
}

func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (model.Device, error) {
	name, typ := strings.TrimSpace(in.Name), strings.TrimSpace(in.Type)
	if name == "" || typ == "" {
		return model.Device{}, apperr.InvalidInput("device name and type are required")
	}
	d := model.Device{UserID: userID, Name: name, Type: typ, Status: model.DeviceOffline}
	if err := s.devices.Create(ctx, &d); err != nil {
		return model.Device{}, apperr.Internal("failed to create device", err)
	}
	s.invalidate(ctx, userID)
	s.logger.Info("device created", zap.Uint("user_id", userID), zap.Uint("device_id", d.ID))
	return d, nil
}

// UpdateInput leaves nil fields unchanged.
type UpdateInput struct {
	Name   *string
	Type   *string
	Status *string
}

// Update changes the device and broadcasts a status transition.
func (s *Service) Update(ctx context.Context, userID, id uint, in UpdateInput) (model.Device, error) {
	current, err := s.devices.GetOwned(ctx, userID, id)
	if err != nil {
		return model.Device{}, notFoundOr(err, "failed to get device")
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Device{}, apperr.InvalidInput("device name must not be empty")
		}
		fields["device_name"] = name
	}
	if in.Type != nil {
		typ := strings.TrimSpace(*in.Type)
		if typ == "" {
			return model.Device{}, apperr.InvalidInput("device type must not be empty")
		}
		fields["device_type"] = typ
	}
	statusChanged := false
	if in.Status != nil {
		if !model.ValidDeviceStatus(*in.Status) {
			return model.Device{}, apperr.InvalidInput("status must be online or offline")
		}
		fields["status"] = *in.Status
		statusChanged = *in.Status != current.Status
		if statusChanged && *in.Status == model.DeviceOnline {
			fields["last_seen_at"] = time.Now().UTC()
		}
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := s.devices.Update(ctx, userID, id, fields); err != nil {
		return model.Device{}, notFoundOr(err, "failed to update device")
	}
	s.invalidate(ctx, userID, id)

	updated, err := s.devices.GetOwned(ctx, userID, id)
	if err != nil {
		return model.Device{}, notFoundOr(err, "failed to get device")
	}
	if statusChanged {
		s.notifier.SendDeviceStatusUpdate(userID, id, updated.Status)
	}
	return updated, nil
}

// Delete removes the device with its bindings and group memberships.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	if err := s.devices.Delete(ctx, userID, id); err != nil {
		return notFoundOr(err, "failed to delete device")
	}
	s.invalidate(ctx, userID, id)
	s.logger.Info("device deleted", zap.Uint("user_id", userID), zap.Uint("device_id", id))
	return nil
}

// BatchDelete removes the user's devices among ids and returns the ids removed.
func (s *Service) BatchDelete(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, apperr.InvalidInput("device ids are required")
	}
	deleted, err := s.devices.BatchDelete(ctx, userID, ids)
	if err != nil {
		return nil, apperr.Internal("failed to delete devices", err)
	}
	s.invalidate(ctx, userID, deleted...)
	return deleted, nil
}

// BatchUpdateStatus sets status on the user's devices among ids and
// broadcasts each actual transition.
func (s *Service) BatchUpdateStatus(ctx context.Context, userID uint, ids []uint, status string) ([]uint, error) {
	if len(ids) == 0 {
		return nil, apperr.InvalidInput("device ids are required")
	}
	if !model.ValidDeviceStatus(status) {
		return nil, apperr.InvalidInput("status must be online or offline")
	}
	changed, err := s.devices.BatchUpdateStatus(ctx, userID, ids, status)
	if err != nil {
		return nil, apperr.Internal("failed to update device status", err)
	}
	s.invalidate(ctx, userID, changed...)
	for _, id := range changed {
		s.notifier.SendDeviceStatusUpdate(userID, id, status)
	}
	return changed, nil
}

func (s *Service) invalidate(ctx context.Context, userID uint, deviceIDs ...uint) {
	keys := []string{cache.DeviceListKey(userID)}
	for _, id := range deviceIDs {
		keys = append(keys, cache.DeviceKey(id))
	}
	s.cache.Del(ctx, keys...)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound("device not found")
	}
	return apperr.Internal(msg, err)
}
