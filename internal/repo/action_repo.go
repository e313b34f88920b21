package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// ActionRepo covers the action catalog.
type ActionRepo interface {
	List(ctx context.Context) ([]model.Action, error)
	Get(ctx context.Context, id uint) (model.Action, error)
	// GetMany returns the actions with the given ids keyed by id. Missing ids are absent.
	GetMany(ctx context.Context, ids []uint) (map[uint]model.Action, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	Create(ctx context.Context, a *model.Action) error
	Save(ctx context.Context, a *model.Action) error
	Delete(ctx context.Context, id uint) error
	ListCombinations(ctx context.Context) ([]model.Action, error)
	// Transaction runs fn with a repo bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx ActionRepo) error) error
}

type actionRepo struct {
	db *gorm.DB
}

func NewActionRepo(db *gorm.DB) ActionRepo {
	return &actionRepo{db: db}
}

func (r *actionRepo) List(ctx context.Context) ([]model.Action, error) {
	var actions []model.Action
	if err := r.db.WithContext(ctx).Order("id").Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return actions, nil
}

func (r *actionRepo) Get(ctx context.Context, id uint) (model.Action, error) {
	var a model.Action
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return model.Action{}, fmt.Errorf("failed to get action: %w", translate(err))
	}
	return a, nil
}

func (r *actionRepo) GetMany(ctx context.Context, ids []uint) (map[uint]model.Action, error) {
	out := make(map[uint]model.Action, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var actions []model.Action
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to get actions: %w", err)
	}
	for _, a := range actions {
		out[a.ID] = a
	}
	return out, nil
}

func (r *actionRepo) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.Action{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check action name: %w", err)
	}
	return n > 0, nil
}

func (r *actionRepo) Create(ctx context.Context, a *model.Action) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create action: %w", translate(err))
	}
	return nil
}

func (r *actionRepo) Save(ctx context.Context, a *model.Action) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("failed to save action: %w", translate(err))
	}
	return nil
}

func (r *actionRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Action{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete action: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete action: %w", ErrNotFound)
	}
	if err := r.db.WithContext(ctx).Where("action_id = ?", id).Delete(&model.DeviceAction{}).Error; err != nil {
		return fmt.Errorf("failed to delete action bindings: %w", err)
	}
	return nil
}

func (r *actionRepo) ListCombinations(ctx context.Context) ([]model.Action, error) {
	var actions []model.Action
	if err := r.db.WithContext(ctx).Where("type = ?", model.ActionCombination).Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list combinations: %w", err)
	}
	return actions, nil
}

func (r *actionRepo) Transaction(ctx context.Context, fn func(tx ActionRepo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&actionRepo{db: tx})
	})
}
