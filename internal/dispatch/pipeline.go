// Package dispatch turns a chat message into a triggered device action or a
// free-form reply and records the turn.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/binding"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// CandidateSource lists the actions bound to a device.
type CandidateSource interface {
	Candidates(ctx context.Context, deviceID uint) ([]binding.Candidate, error)
}

// Notifier pushes a chat turn to the user's live connections.
type Notifier interface {
	SendChatMessage(userID uint, message any)
}

// Turn is the result of one dispatch as returned to clients and pushed to
// live connections.
type Turn struct {
	ID              uint      `json:"id"`
	Message         string    `json:"message"`
	Response        string    `json:"response"`
	ActionTriggered *uint     `json:"actionTriggered"`
	CreatedAt       time.Time `json:"createdAt"`
	DeviceID        uint      `json:"deviceId"`
}

type Pipeline struct {
	devices       repo.DeviceRepo
	actions       repo.ActionRepo
	conversations repo.ConversationRepo
	candidates    CandidateSource
	matcher       Matcher
	responder     Responder
	notifier      Notifier
	logger        *zap.Logger
}

type Deps struct {
	Devices       repo.DeviceRepo
	Actions       repo.ActionRepo
	Conversations repo.ConversationRepo
	Candidates    CandidateSource
	Matcher       Matcher
	Responder     Responder
	Notifier      Notifier
}

func NewPipeline(d Deps, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		devices:       d.Devices,
		actions:       d.Actions,
		conversations: d.Conversations,
		candidates:    d.Candidates,
		matcher:       d.Matcher,
		responder:     d.Responder,
		notifier:      d.Notifier,
		logger:        logger.Named("dispatch"),
	}
}

// Dispatch handles one chat message for a device owned by userID.
func (p *Pipeline) Dispatch(ctx context.Context, userID, deviceID uint, message string) (Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Turn{}, apperr.InvalidInput("message must not be empty")
	}
	if _, err := p.devices.GetOwned(ctx, userID, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Turn{}, apperr.NotFound("device not found")
		}
		return Turn{}, apperr.Internal("failed to get device", err)
	}

	candidates, err := p.candidates.Candidates(ctx, deviceID)
	if err != nil {
		return Turn{}, apperr.Internal("failed to load device actions", err)
	}

	matched := p.match(ctx, deviceID, message, candidates)

	var response string
	if matched != nil {
		response = p.describe(ctx, *matched)
	} else {
		response = p.reply(ctx, message)
	}

	conv := model.Conversation{
		UserID:          userID,
		DeviceID:        deviceID,
		Message:         message,
		Response:        response,
		ActionTriggered: matched,
	}
	if err := p.conversations.Create(ctx, &conv); err != nil {
		return Turn{}, apperr.Internal("failed to save conversation", err)
	}

	turn := Turn{
		ID:              conv.ID,
		Message:         conv.Message,
		Response:        conv.Response,
		ActionTriggered: conv.ActionTriggered,
		CreatedAt:       conv.CreatedAt,
		DeviceID:        deviceID,
	}
	if p.notifier != nil {
		p.notifier.SendChatMessage(userID, turn)
	}
	return turn, nil
}

// match consults the matcher and falls back to substring matching when it
// fails. With no candidates nothing can be triggered.
func (p *Pipeline) match(ctx context.Context, deviceID uint, message string, candidates []binding.Candidate) *uint {
	if len(candidates) == 0 {
		return nil
	}
	id, err := p.matcher.MatchAction(ctx, message, candidates)
	if err == nil {
		if id != nil {
			outcomeCounter.WithLabelValues(outcomeMatchedModel).Inc()
		}
		return id
	}

	p.logger.Warn("action matcher failed, using substring fallback", zap.Uint("device_id", deviceID), zap.Error(err))
	id = MatchBySubstring(message, candidates)
	if id != nil {
		outcomeCounter.WithLabelValues(outcomeMatchedFallback).Inc()
	}
	return id
}

func (p *Pipeline) describe(ctx context.Context, actionID uint) string {
	a, err := p.actions.Get(ctx, actionID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			p.logger.Warn("failed to load matched action", zap.Uint("action_id", actionID), zap.Error(err))
		}
		return "Action triggered"
	}
	return "Triggered action: " + a.Name
}

func (p *Pipeline) reply(ctx context.Context, message string) string {
	text, err := p.responder.Reply(ctx, message)
	if err != nil {
		p.logger.Warn("responder failed, using template reply", zap.Error(err))
		outcomeCounter.WithLabelValues(outcomeReplyFallback).Inc()
		return fallbackReply(message)
	}
	outcomeCounter.WithLabelValues(outcomeReplyModel).Inc()
	return text
}

// History returns the newest conversation turns for a device.
func (p *Pipeline) History(ctx context.Context, userID, deviceID uint, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if _, err := p.devices.GetOwned(ctx, userID, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("device not found")
		}
		return nil, apperr.Internal("failed to get device", err)
	}
	convs, err := p.conversations.ListByDevice(ctx, userID, deviceID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list conversations", err)
	}
	return convs, nil
}
