package device

import (
	"context"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"go.uber.org/zap"
)

// StaleAfter is how long an online device may go without a heartbeat.
const StaleAfter = 5 * time.Minute

// Heartbeat marks the device online. Repeated heartbeats only refresh
// last_seen_at; the transition is broadcast once.
func (s *Service) Heartbeat(ctx context.Context, deviceID uint) (model.Device, error) {
	return s.transition(ctx, deviceID, model.DeviceOnline)
}

// Offline marks the device offline, broadcasting only an actual transition.
func (s *Service) Offline(ctx context.Context, deviceID uint) (model.Device, error) {
	return s.transition(ctx, deviceID, model.DeviceOffline)
}

func (s *Service) transition(ctx context.Context, deviceID uint, status string) (model.Device, error) {
	if deviceID == 0 {
		return model.Device{}, apperr.InvalidInput("device id is required")
	}
	now := time.Now().UTC()
	changed, err := s.devices.SetStatusIfChanged(ctx, deviceID, status, now)
	if err != nil {
		return model.Device{}, apperr.Internal("failed to update device status", err)
	}
	touched := false
	if !changed && status == model.DeviceOnline {
		if err := s.devices.Touch(ctx, deviceID, now); err != nil {
			s.logger.Warn("failed to refresh last seen", zap.Uint("device_id", deviceID), zap.Error(err))
		} else {
			touched = true
		}
	}

	d, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return model.Device{}, notFoundOr(err, "failed to get device")
	}
	if changed || touched {
		s.invalidate(ctx, d.UserID, d.ID)
	}
	if changed {
		s.notifier.SendDeviceStatusUpdate(d.UserID, d.ID, status)
		s.logger.Info("device status changed", zap.Uint("device_id", d.ID), zap.String("status", status))
	}
	return d, nil
}

// SweepStale takes devices offline that have been silent longer than maxAge
// and returns how many changed.
func (s *Service) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.devices.ListStaleOnline(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range stale {
		changed, err := s.devices.SetStatusIfChanged(ctx, d.ID, model.DeviceOffline, time.Now().UTC())
		if err != nil {
			s.logger.Warn("failed to mark stale device offline", zap.Uint("device_id", d.ID), zap.Error(err))
			continue
		}
		if changed {
			n++
			s.invalidate(ctx, d.UserID, d.ID)
			s.notifier.SendDeviceStatusUpdate(d.UserID, d.ID, model.DeviceOffline)
		}
	}
	return n, nil
}
