package repo

import (
	"context"
	"fmt"

	"github.com/airobot/server/internal/model"
	"gorm.io/gorm"
)

// ConversationRepo appends and reads chat turns.
type ConversationRepo interface {
	Create(ctx context.Context, c *model.Conversation) error
	// ListByDevice returns the newest turns first.
	ListByDevice(ctx context.Context, userID, deviceID uint, limit int) ([]model.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) ListByDevice(ctx context.Context, userID, deviceID uint, limit int) ([]model.Conversation, error) {
	var out []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out, nil
}
