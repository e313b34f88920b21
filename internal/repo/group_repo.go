package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// GroupRepo manages device groups and their membership.
type GroupRepo interface {
	List(ctx context.Context, userID uint) ([]model.DeviceGroup, error)
	Get(ctx context.Context, userID, id uint) (model.DeviceGroup, error)
	Create(ctx context.Context, g *model.DeviceGroup) error
	Update(ctx context.Context, userID, id uint, fields map[string]any) error
	Delete(ctx context.Context, userID, id uint) error
	AddDevice(ctx context.Context, groupID, deviceID uint) error
	// RemoveDevice returns ErrNotFound when the device is not a member.
	RemoveDevice(ctx context.Context, groupID, deviceID uint) error
}

type groupRepo struct {
	db *gorm.DB
}

func NewGroupRepo(db *gorm.DB) GroupRepo {
	return &groupRepo{db: db}
}

func (r *groupRepo) List(ctx context.Context, userID uint) ([]model.DeviceGroup, error) {
	var groups []model.DeviceGroup
	if err := r.db.WithContext(ctx).Preload("Devices").Where("user_id = ?", userID).Order("id").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (r *groupRepo) Get(ctx context.Context, userID, id uint) (model.DeviceGroup, error) {
	var g model.DeviceGroup
	err := r.db.WithContext(ctx).Preload("Devices").Where("id = ? AND user_id = ?", id, userID).First(&g).Error
	if err != nil {
		return model.DeviceGroup{}, fmt.Errorf("failed to get group: %w", translate(err))
	}
	return g, nil
}

func (r *groupRepo) Create(ctx context.Context, g *model.DeviceGroup) error {
	if err := r.db.WithContext(ctx).Omit("Devices").Create(g).Error; err != nil {
		return fmt.Errorf("failed to create group: %w", translate(err))
	}
	return nil
}

func (r *groupRepo) Update(ctx context.Context, userID, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.DeviceGroup{}).Where("id = ? AND user_id = ?", id, userID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update group: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update group: %w", ErrNotFound)
	}
	return nil
}

func (r *groupRepo) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.DeviceGroup{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to delete group: %w", ErrNotFound)
		}
		if err := tx.Where("group_id = ?", id).Delete(&model.DeviceGroupRelation{}).Error; err != nil {
			return fmt.Errorf("failed to delete group relations: %w", err)
		}
		return nil
	})
}

func (r *groupRepo) AddDevice(ctx context.Context, groupID, deviceID uint) error {
	rel := model.DeviceGroupRelation{GroupID: groupID, DeviceID: deviceID}
	if err := r.db.WithContext(ctx).Create(&rel).Error; err != nil {
		return fmt.Errorf("failed to add device to group: %w", translate(err))
	}
	return nil
}

func (r *groupRepo) RemoveDevice(ctx context.Context, groupID, deviceID uint) error {
	res := r.db.WithContext(ctx).Where("group_id = ? AND device_id = ?", groupID, deviceID).Delete(&model.DeviceGroupRelation{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove device from group: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to remove device from group: %w", ErrNotFound)
	}
	return nil
}
