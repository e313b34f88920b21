package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// DeviceRepo defines the interface for device repository operations
type DeviceRepo interface {
	ListByUser(ctx context.Context, userID uint) ([]model.Device, error)
	Get(ctx context.Context, id uint) (model.Device, error)
	// GetOwned returns ErrNotFound when the device belongs to another user.
	GetOwned(ctx context.Context, userID, id uint) (model.Device, error)
	Create(ctx context.Context, d *model.Device) error
	Update(ctx context.Context, userID, id uint, fields map[string]any) error
	// Delete removes the device together with its bindings and group memberships.
	Delete(ctx context.Context, userID, id uint) error
	// BatchDelete removes the user's devices among ids and returns the ones removed.
	BatchDelete(ctx context.Context, userID uint, ids []uint) ([]uint, error)
	// BatchUpdateStatus sets status on the user's devices among ids whose
	// status differs and returns the changed ids.
	BatchUpdateStatus(ctx context.Context, userID uint, ids []uint, status string) ([]uint, error)
	// SetStatusIfChanged updates status only when it differs and reports
	// whether a row changed. Online transitions also stamp last_seen_at.
	SetStatusIfChanged(ctx context.Context, id uint, status string, at time.Time) (bool, error)
	Touch(ctx context.Context, id uint, at time.Time) error
	ListStaleOnline(ctx context.Context, before time.Time) ([]model.Device, error)
}

type deviceRepo struct {
	db *gorm.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *gorm.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) ListByUser(ctx context.Context, userID uint) ([]model.Device, error) {
	var devices []model.Device
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (r *deviceRepo) Get(ctx context.Context, id uint) (model.Device, error) {
	var d model.Device
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return model.Device{}, fmt.Errorf("failed to get device: %w", translate(err))
	}
	return d, nil
}

func (r *deviceRepo) GetOwned(ctx context.Context, userID, id uint) (model.Device, error) {
	var d model.Device
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error; err != nil {
		return model.Device{}, fmt.Errorf("failed to get device: %w", translate(err))
	}
	return d, nil
}

func (r *deviceRepo) Create(ctx context.Context, d *model.Device) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", translate(err))
	}
	return nil
}

func (r *deviceRepo) Update(ctx context.Context, userID, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Device{}).Where("id = ? AND user_id = ?", id, userID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update device: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update device: %w", ErrNotFound)
	}
	return nil
}

func (r *deviceRepo) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Device{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete device: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to delete device: %w", ErrNotFound)
		}
		return deleteDeviceDependents(tx, []uint{id})
	})
}

func (r *deviceRepo) BatchDelete(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	var owned []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Device{}).Where("user_id = ? AND id IN ?", userID, ids).Pluck("id", &owned).Error; err != nil {
			return fmt.Errorf("failed to resolve devices: %w", err)
		}
		if len(owned) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", owned).Delete(&model.Device{}).Error; err != nil {
			return fmt.Errorf("failed to delete devices: %w", err)
		}
		return deleteDeviceDependents(tx, owned)
	})
	if err != nil {
		return nil, err
	}
	return owned, nil
}

func deleteDeviceDependents(tx *gorm.DB, ids []uint) error {
	if err := tx.Where("device_id IN ?", ids).Delete(&model.DeviceAction{}).Error; err != nil {
		return fmt.Errorf("failed to delete device bindings: %w", err)
	}
	if err := tx.Where("device_id IN ?", ids).Delete(&model.DeviceGroupRelation{}).Error; err != nil {
		return fmt.Errorf("failed to delete group relations: %w", err)
	}
	return nil
}

func (r *deviceRepo) BatchUpdateStatus(ctx context.Context, userID uint, ids []uint, status string) ([]uint, error) {
	var changed []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Device{}).
			Where("user_id = ? AND id IN ? AND status <> ?", userID, ids, status).
			Pluck("id", &changed).Error; err != nil {
			return fmt.Errorf("failed to resolve devices: %w", err)
		}
		if len(changed) == 0 {
			return nil
		}
		fields := map[string]any{"status": status}
		if status == model.DeviceOnline {
			fields["last_seen_at"] = time.Now().UTC()
		}
		if err := tx.Model(&model.Device{}).Where("id IN ?", changed).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update device status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *deviceRepo) SetStatusIfChanged(ctx context.Context, id uint, status string, at time.Time) (bool, error) {
	fields := map[string]any{"status": status}
	if status == model.DeviceOnline {
		fields["last_seen_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("failed to set device status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *deviceRepo) Touch(ctx context.Context, id uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).
		UpdateColumn("last_seen_at", at).Error; err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

func (r *deviceRepo) ListStaleOnline(ctx context.Context, before time.Time) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).
		Where("status = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", model.DeviceOnline, before).
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale devices: %w", err)
	}
	return devices, nil
}
