package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"go.uber.org/zap"
)

// StepReceipt describes one executed action.
type StepReceipt struct {
	ActionID   uint            `json:"actionId"`
	ActionName string          `json:"actionName"`
	Type       string          `json:"type"`
	Steps      json.RawMessage `json:"steps"`
	Duration   float64         `json:"duration"`
	ExecutedAt time.Time       `json:"executedAt"`
}

// CombinationReceipt aggregates the receipts of a combination's steps in order.
type CombinationReceipt struct {
	CombinationID   uint          `json:"combinationId"`
	CombinationName string        `json:"combinationName"`
	Steps           []StepReceipt `json:"steps"`
	TotalDuration   float64       `json:"totalDuration"`
	ExecutedAt      time.Time     `json:"executedAt"`
}

// Receipt holds exactly one of Single or Combination.
type Receipt struct {
	Single      *StepReceipt
	Combination *CombinationReceipt
}

func (r Receipt) MarshalJSON() ([]byte, error) {
	if r.Combination != nil {
		return json.Marshal(r.Combination)
	}
	return json.Marshal(r.Single)
}

// Execute produces an execution receipt. No device command is issued here;
// the receipt is what a device transport would act on.
func (s *Service) Execute(ctx context.Context, id uint) (Receipt, error) {
	a, err := s.actions.Get(ctx, id)
	if err != nil {
		return Receipt{}, notFoundOr(err, "action not found", "failed to get action")
	}
	if !a.IsCombination() {
		r := s.executeSingle(a)
		return Receipt{Single: &r}, nil
	}

	ids, err := a.StepIDs()
	if err != nil {
		return Receipt{}, apperr.InvalidInput("combination steps are malformed")
	}
	found, err := s.actions.GetMany(ctx, ids)
	if err != nil {
		return Receipt{}, apperr.Internal("failed to resolve combination steps", err)
	}

	out := CombinationReceipt{CombinationID: a.ID, CombinationName: a.Name, TotalDuration: a.Duration}
	for _, sid := range ids {
		step, ok := found[sid]
		if !ok {
			return Receipt{}, apperr.NotFound("combination step action not found")
		}
		out.Steps = append(out.Steps, s.executeSingle(step))
	}
	out.ExecutedAt = time.Now().UTC()
	return Receipt{Combination: &out}, nil
}

func (s *Service) executeSingle(a model.Action) StepReceipt {
	s.logger.Info("executing action", zap.Uint("action_id", a.ID), zap.String("name", a.Name), zap.String("type", a.Type))
	steps := json.RawMessage(a.Steps)
	if len(steps) == 0 {
		steps = json.RawMessage("[]")
	}
	return StepReceipt{
		ActionID:   a.ID,
		ActionName: a.Name,
		Type:       a.Type,
		Steps:      steps,
		Duration:   a.Duration,
		ExecutedAt: time.Now().UTC(),
	}
}
