package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// RoleRepo covers roles, permissions and their assignment.
type RoleRepo interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByID(ctx context.Context, id uint) (model.Role, error)
	GetByName(ctx context.Context, name string) (model.Role, error)
	Create(ctx context.Context, role *model.Role) error
	// ReplacePermissions swaps the role's permission set in one transaction.
	ReplacePermissions(ctx context.Context, roleID uint, permissionIDs []uint) error

	ListPermissions(ctx context.Context) ([]model.Permission, error)
	CreatePermission(ctx context.Context, p *model.Permission) error
	CountPermissions(ctx context.Context, ids []uint) (int64, error)
}

type roleRepo struct {
	db *gorm.DB
}

func NewRoleRepo(db *gorm.DB) RoleRepo {
	return &roleRepo{db: db}
}

func (r *roleRepo) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").Order("id").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepo) GetByID(ctx context.Context, id uint) (model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").First(&role, id).Error; err != nil {
		return model.Role{}, fmt.Errorf("failed to get role: %w", translate(err))
	}
	return role, nil
}

func (r *roleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return model.Role{}, fmt.Errorf("failed to get role %q: %w", name, translate(err))
	}
	return role, nil
}

func (r *roleRepo) Create(ctx context.Context, role *model.Role) error {
	if err := r.db.WithContext(ctx).Omit("Permissions").Create(role).Error; err != nil {
		return fmt.Errorf("failed to create role: %w", translate(err))
	}
	return nil
}

func (r *roleRepo) ReplacePermissions(ctx context.Context, roleID uint, permissionIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to clear role permissions: %w", err)
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		rows := make([]model.RolePermission, 0, len(permissionIDs))
		seen := make(map[uint]bool, len(permissionIDs))
		for _, pid := range permissionIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			rows = append(rows, model.RolePermission{RoleID: roleID, PermissionID: pid})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to assign role permissions: %w", translate(err))
		}
		return nil
	})
}

func (r *roleRepo) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := r.db.WithContext(ctx).Order("module, name").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

func (r *roleRepo) CreatePermission(ctx context.Context, p *model.Permission) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create permission: %w", translate(err))
	}
	return nil
}

func (r *roleRepo) CountPermissions(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Permission{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count permissions: %w", err)
	}
	return n, nil
}
