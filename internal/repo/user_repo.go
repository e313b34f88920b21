package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint) (model.User, error)
	GetByLogin(ctx context.Context, login string) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	ExistsUsernameOrEmail(ctx context.Context, username, email string, excludeID uint) (bool, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", translate(err))
	}
	return u, nil
}

// GetByLogin looks a user up by username or email.
func (r *userRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Preload("Role").
		Where("username = ? OR email = ?", login, login).
		First(&u).Error
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by login: %w", translate(err))
	}
	return u, nil
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Preload("Role").Where("phone = ?", phone).First(&u).Error; err != nil {
		return model.User{}, fmt.Errorf("failed to get user by phone: %w", translate(err))
	}
	return u, nil
}

func (r *userRepo) ExistsUsernameOrEmail(ctx context.Context, username, email string, excludeID uint) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ? OR email = ?", username, email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check user uniqueness: %w", err)
	}
	return n > 0, nil
}

func (r *userRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Preload("Role").Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepo) Update(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update user: %w", ErrNotFound)
	}
	return nil
}
