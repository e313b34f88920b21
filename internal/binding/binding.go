// Package binding maps devices to the catalog actions they expose, each with
// a natural-language trigger phrase.
package binding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

// Candidate is a bound action offered to the dispatch matcher.
type Candidate struct {
	ActionID    uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// View is a binding joined with its action for display.
type View struct {
	ID                uint      `json:"id"`
	DeviceID          uint      `json:"device_id"`
	ActionID          uint      `json:"action_id"`
	Prompt            string    `json:"prompt"`
	ActionName        string    `json:"action_name"`
	ActionDescription string    `json:"action_description"`
	ActionType        string    `json:"action_type"`
	CreatedAt         time.Time `json:"created_at"`
}

type Service struct {
	bindings repo.BindingRepo
	devices  repo.DeviceRepo
	actions  repo.ActionRepo
	logger   *zap.Logger
}

func NewService(bindings repo.BindingRepo, devices repo.DeviceRepo, actions repo.ActionRepo, logger *zap.Logger) *Service {
	return &Service{bindings: bindings, devices: devices, actions: actions, logger: logger.Named("binding")}
}

func (s *Service) List(ctx context.Context, userID, deviceID uint) ([]View, error) {
	if err := s.ensureDevice(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	rows, err := s.bindings.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperr.Internal("failed to list device actions", err)
	}
	out := make([]View, 0, len(rows))
	for _, b := range rows {
		out = append(out, toView(b))
	}
	return out, nil
}

// Add binds actionID to deviceID. The existence check and insert share a
// transaction and the unique index on the pair backs it.
func (s *Service) Add(ctx context.Context, userID, deviceID, actionID uint, prompt string) (View, error) {
	if err := s.ensureDevice(ctx, userID, deviceID); err != nil {
		return View{}, err
	}
	action, err := s.actions.Get(ctx, actionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return View{}, apperr.NotFound("action not found")
		}
		return View{}, apperr.Internal("failed to get action", err)
	}

	b := model.DeviceAction{DeviceID: deviceID, ActionID: actionID, Prompt: strings.TrimSpace(prompt)}
	err = s.bindings.Transaction(ctx, func(tx repo.BindingRepo) error {
		exists, err := tx.Exists(ctx, deviceID, actionID)
		if err != nil {
			return apperr.Internal("failed to check device action", err)
		}
		if exists {
			return apperr.Conflict("action is already bound to this device")
		}
		if err := tx.Create(ctx, &b); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return apperr.Conflict("action is already bound to this device")
			}
			return apperr.Internal("failed to bind action", err)
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	b.Action = &action
	s.logger.Info("action bound", zap.Uint("device_id", deviceID), zap.Uint("action_id", actionID))
	return toView(b), nil
}

func (s *Service) Update(ctx context.Context, userID, id uint, prompt string) (View, error) {
	b, err := s.owned(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	b.Prompt = strings.TrimSpace(prompt)
	if err := s.bindings.UpdatePrompt(ctx, id, b.Prompt); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return View{}, apperr.NotFound("device action not found")
		}
		return View{}, apperr.Internal("failed to update device action", err)
	}
	return toView(b), nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.bindings.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.NotFound("device action not found")
		}
		return apperr.Internal("failed to delete device action", err)
	}
	return nil
}

// Candidates returns the device's bound actions in binding order.
func (s *Service) Candidates(ctx context.Context, deviceID uint) ([]Candidate, error) {
	rows, err := s.bindings.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(rows))
	for _, b := range rows {
		c := Candidate{ActionID: b.ActionID, Prompt: b.Prompt}
		if b.Action != nil {
			c.Name = b.Action.Name
			c.Description = b.Action.Description
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) ensureDevice(ctx context.Context, userID, deviceID uint) error {
	if _, err := s.devices.GetOwned(ctx, userID, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.NotFound("device not found")
		}
		return apperr.Internal("failed to get device", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, userID, id uint) (model.DeviceAction, error) {
	b, err := s.bindings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.DeviceAction{}, apperr.NotFound("device action not found")
		}
		return model.DeviceAction{}, apperr.Internal("failed to get device action", err)
	}
	if err := s.ensureDevice(ctx, userID, b.DeviceID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return model.DeviceAction{}, apperr.NotFound("device action not found")
		}
		return model.DeviceAction{}, err
	}
	return b, nil
}

func toView(b model.DeviceAction) View {
	v := View{ID: b.ID, DeviceID: b.DeviceID, ActionID: b.ActionID, Prompt: b.Prompt, CreatedAt: b.CreatedAt}
	if b.Action != nil {
		v.ActionName = b.Action.Name
		v.ActionDescription = b.Action.Description
		v.ActionType = b.Action.Type
	}
	return v
}
