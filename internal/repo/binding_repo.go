package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// BindingRepo manages device-action bindings.
type BindingRepo interface {
	// ListByDevice returns bindings in id order with the bound action preloaded.
	ListByDevice(ctx context.Context, deviceID uint) ([]model.DeviceAction, error)
	Get(ctx context.Context, id uint) (model.DeviceAction, error)
	Exists(ctx context.Context, deviceID, actionID uint) (bool, error)
	Create(ctx context.Context, b *model.DeviceAction) error
	UpdatePrompt(ctx context.Context, id uint, prompt string) error
	Delete(ctx context.Context, id uint) error
	Transaction(ctx context.Context, fn func(tx BindingRepo) error) error
}

type bindingRepo struct {
	db *gorm.DB
}

func NewBindingRepo(db *gorm.DB) BindingRepo {
	return &bindingRepo{db: db}
}

func (r *bindingRepo) ListByDevice(ctx context.Context, deviceID uint) ([]model.DeviceAction, error) {
	var bindings []model.DeviceAction
	err := r.db.WithContext(ctx).Preload("Action").Where("device_id = ?", deviceID).Order("id").Find(&bindings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list device actions: %w", err)
	}
	return bindings, nil
}

func (r *bindingRepo) Get(ctx context.Context, id uint) (model.DeviceAction, error) {
	var b model.DeviceAction
	if err := r.db.WithContext(ctx).Preload("Action").First(&b, id).Error; err != nil {
		return model.DeviceAction{}, fmt.Errorf("failed to get device action: %w", translate(err))
	}
	return b, nil
}

func (r *bindingRepo) Exists(ctx context.Context, deviceID, actionID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.DeviceAction{}).
		Where("device_id = ? AND action_id = ?", deviceID, actionID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check device action: %w", err)
	}
	return n > 0, nil
}

func (r *bindingRepo) Create(ctx context.Context, b *model.DeviceAction) error {
	if err := r.db.WithContext(ctx).Omit("Action").Create(b).Error; err != nil {
		return fmt.Errorf("failed to create device action: %w", translate(err))
	}
	return nil
}

func (r *bindingRepo) UpdatePrompt(ctx context.Context, id uint, prompt string) error {
	res := r.db.WithContext(ctx).Model(&model.DeviceAction{}).Where("id = ?", id).Update("prompt", prompt)
	if res.Error != nil {
		return fmt.Errorf("failed to update device action: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update device action: %w", ErrNotFound)
	}
	return nil
}

func (r *bindingRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.DeviceAction{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete device action: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete device action: %w", ErrNotFound)
	}
	return nil
}

func (r *bindingRepo) Transaction(ctx context.Context, fn func(tx BindingRepo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&bindingRepo{db: tx})
	})
}
