// Package catalog manages the action catalog: basic and custom actions and
// combinations of them.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

const durationEpsilon = 1e-9

type Service struct {
	actions repo.ActionRepo
	cache   cache.Cache
	logger  *zap.Logger
}

func NewService(actions repo.ActionRepo, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{actions: actions, cache: c, logger: logger.Named("catalog")}
}

// Input carries the writable fields of an action. On update, nil fields are
// left unchanged.
type Input struct {
	Name        *string
	Description *string
	Type        *string
	Duration    *float64
	Steps       json.RawMessage
}

// Detail is an action with its resolved combination steps.
type Detail struct {
	model.Action
	CombinationDetails []model.Action `json:"combination_details,omitempty"`
}

func (s *Service) List(ctx context.Context) ([]model.Action, error) {
	var cached []model.Action
	if s.cache.Get(ctx, cache.ActionListKey, &cached) {
		return cached, nil
	}
	actions, err := s.actions.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list actions", err)
	}
	s.cache.Set(ctx, cache.ActionListKey, actions, cache.ActionTTL)
	return actions, nil
}

func (s *Service) Get(ctx context.Context, id uint) (Detail, error) {
	var cached Detail
	if s.cache.Get(ctx, cache.ActionKey(id), &cached) {
		return cached, nil
	}

	a, err := s.actions.Get(ctx, id)
	if err != nil {
		return Detail{}, notFoundOr(err, "action not found", "failed to get action")
	}
	d := Detail{Action: a}
	if a.IsCombination() {
		ids, err := a.StepIDs()
		if err != nil {
			return Detail{}, apperr.Internal("stored combination steps are malformed", err)
		}
		found, err := s.actions.GetMany(ctx, ids)
		if err != nil {
			return Detail{}, apperr.Internal("failed to resolve combination steps", err)
		}
		for _, sid := range ids {
			if step, ok := found[sid]; ok {
				d.CombinationDetails = append(d.CombinationDetails, step)
			}
		}
	}
	s.cache.Set(ctx, cache.ActionKey(id), d, cache.ActionTTL)
	return d, nil
}

// Create validates and stores a new action. The name check, the step
// validation and the insert share one transaction.
func (s *Service) Create(ctx context.Context, in Input) (model.Action, error) {
	a := model.Action{}
	if err := apply(&a, in); err != nil {
		return model.Action{}, err
	}
	if in.Name == nil || in.Type == nil {
		return model.Action{}, apperr.InvalidInput("name and type are required")
	}

	err := s.actions.Transaction(ctx, func(tx repo.ActionRepo) error {
		if err := checkName(ctx, tx, a.Name, 0); err != nil {
			return err
		}
		if err := normalizeSteps(ctx, tx, &a); err != nil {
			return err
		}
		if err := tx.Create(ctx, &a); err != nil {
			return writeErr(err, "failed to create action")
		}
		return nil
	})
	if err != nil {
		return model.Action{}, err
	}

	s.cache.DelPattern(ctx, cache.ActionsPattern)
	s.logger.Info("action created", zap.Uint("action_id", a.ID), zap.String("type", a.Type))
	return a, nil
}

// Update applies in to the action and re-validates it. Combinations that
// already reference the action keep their stored duration and are checked
// against the limit again only when they are themselves updated.
func (s *Service) Update(ctx context.Context, id uint, in Input) (model.Action, error) {
	var a model.Action
	err := s.actions.Transaction(ctx, func(tx repo.ActionRepo) error {
		var err error
		a, err = tx.Get(ctx, id)
		if err != nil {
			return notFoundOr(err, "action not found", "failed to get action")
		}
		typeChanged := in.Type != nil && *in.Type != a.Type
		if err := apply(&a, in); err != nil {
			return err
		}
		if in.Name != nil {
			if err := checkName(ctx, tx, a.Name, a.ID); err != nil {
				return err
			}
		}
		if typeChanged && in.Steps == nil {
			return apperr.InvalidInput("steps are required when changing the action type")
		}
		if in.Steps != nil || in.Duration != nil || a.IsCombination() {
			if err := normalizeSteps(ctx, tx, &a); err != nil {
				return err
			}
		}
		if err := tx.Save(ctx, &a); err != nil {
			return writeErr(err, "failed to update action")
		}
		return nil
	})
	if err != nil {
		return model.Action{}, err
	}

	s.cache.DelPattern(ctx, cache.ActionsPattern)
	return a, nil
}

// Delete removes an action unless a combination references it. Bindings to
// the action are removed with it.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.actions.Transaction(ctx, func(tx repo.ActionRepo) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return notFoundOr(err, "action not found", "failed to get action")
		}
		combos, err := tx.ListCombinations(ctx)
		if err != nil {
			return apperr.Internal("failed to check action references", err)
		}
		for _, c := range combos {
			if c.ID == id {
				continue
			}
			ids, err := c.StepIDs()
			if err != nil {
				s.logger.Warn("skipping combination with malformed steps", zap.Uint("action_id", c.ID), zap.Error(err))
				continue
			}
			for _, sid := range ids {
				if sid == id {
					return apperr.Conflict(fmt.Sprintf("action is used by combination %q", c.Name))
				}
			}
		}
		if err := tx.Delete(ctx, id); err != nil {
			return notFoundOr(err, "action not found", "failed to delete action")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.DelPattern(ctx, cache.ActionsPattern)
	s.logger.Info("action deleted", zap.Uint("action_id", id))
	return nil
}

func apply(a *model.Action, in Input) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 100 {
			return apperr.InvalidInput("name must be 1 to 100 characters")
		}
		a.Name = name
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Type != nil {
		if !model.ValidActionType(*in.Type) {
			return apperr.InvalidInput("type must be basic, custom or combination")
		}
		a.Type = *in.Type
	}
	if in.Duration != nil {
		if *in.Duration < 0 {
			return apperr.InvalidInput("duration must be positive")
		}
		a.Duration = *in.Duration
	}
	if in.Steps != nil {
		a.Steps = []byte(in.Steps)
	}
	return nil
}

func checkName(ctx context.Context, tx repo.ActionRepo, name string, excludeID uint) error {
	taken, err := tx.NameTaken(ctx, name, excludeID)
	if err != nil {
		return apperr.Internal("failed to check action name", err)
	}
	if taken {
		return apperr.Conflict("action name already exists")
	}
	return nil
}

// normalizeSteps validates Steps for the action's type and rewrites them in
// canonical form. A combination's referenced actions must all exist and
// their durations, counted once per occurrence, must not exceed
// MaxCombinationDuration. A combination without a duration takes that sum.
func normalizeSteps(ctx context.Context, tx repo.ActionRepo, a *model.Action) error {
	if !a.IsCombination() {
		labels, err := model.DecodeStepLabels(a.Steps)
		if err != nil {
			return apperr.InvalidInput(err.Error())
		}
		if len(labels) == 0 {
			labels = []string{a.Name}
		}
		if a.Duration <= 0 {
			return apperr.InvalidInput("duration must be positive")
		}
		a.Steps = model.EncodeSteps(labels)
		return nil
	}

	ids, err := model.DecodeStepIDs(a.Steps)
	if err != nil {
		return apperr.InvalidInput(err.Error())
	}
	if len(ids) == 0 {
		return apperr.InvalidInput("a combination needs at least one step")
	}
	for _, sid := range ids {
		if a.ID != 0 && sid == a.ID {
			return apperr.InvalidInput("a combination cannot contain itself")
		}
	}

	found, err := tx.GetMany(ctx, ids)
	if err != nil {
		return apperr.Internal("failed to resolve combination steps", err)
	}
	var total float64
	for _, sid := range ids {
		step, ok := found[sid]
		if !ok {
			return apperr.InvalidInput(fmt.Sprintf("step action %d does not exist", sid))
		}
		total += step.Duration
	}
	if total > model.MaxCombinationDuration+durationEpsilon {
		return apperr.InvalidInput(fmt.Sprintf("combination duration %.2gs exceeds the %.0fs limit", total, model.MaxCombinationDuration))
	}
	if a.Duration <= 0 {
		a.Duration = total
	}
	a.Steps = model.EncodeSteps(ids)
	return nil
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound(notFoundMsg)
	}
	return apperr.Internal(internalMsg, err)
}

func writeErr(err error, msg string) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return apperr.Conflict("action name already exists")
	}
	return apperr.Internal(msg, err)
}
