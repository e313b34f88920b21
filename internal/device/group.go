package device

import (
	"context"
	"errors"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
)

func (s *Service) ListGroups(ctx context.Context, userID uint) ([]model.DeviceGroup, error) {
	groups, err := s.groups.List(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list groups", err)
	}
	return groups, nil
}

func (s *Service) GetGroup(ctx context.Context, userID, id uint) (model.DeviceGroup, error) {
	g, err := s.groups.Get(ctx, userID, id)
	if err != nil {
		return model.DeviceGroup{}, groupErr(err, "failed to get group")
	}
	return g, nil
}

func (s *Service) CreateGroup(ctx context.Context, userID uint, name, description string) (model.DeviceGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.DeviceGroup{}, apperr.InvalidInput("group name is required")
	}
	g := model.DeviceGroup{UserID: userID, Name: name, Description: description}
	if err := s.groups.Create(ctx, &g); err != nil {
		return model.DeviceGroup{}, apperr.Internal("failed to create group", err)
	}
	return g, nil
}

func (s *Service) UpdateGroup(ctx context.Context, userID, id uint, name, description *string) (model.DeviceGroup, error) {
	fields := map[string]any{}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return model.DeviceGroup{}, apperr.InvalidInput("group name must not be empty")
		}
		fields["name"] = n
	}
	if description != nil {
		fields["description"] = *description
	}
	if len(fields) > 0 {
		if err := s.groups.Update(ctx, userID, id, fields); err != nil {
			return model.DeviceGroup{}, groupErr(err, "failed to update group")
		}
	}
	return s.GetGroup(ctx, userID, id)
}

func (s *Service) DeleteGroup(ctx context.Context, userID, id uint) error {
	if err := s.groups.Delete(ctx, userID, id); err != nil {
		return groupErr(err, "failed to delete group")
	}
	return nil
}

// AddToGroup adds one of the user's devices to one of the user's groups.
func (s *Service) AddToGroup(ctx context.Context, userID, groupID, deviceID uint) error {
	if err := s.ownsBoth(ctx, userID, groupID, deviceID); err != nil {
		return err
	}
	if err := s.groups.AddDevice(ctx, groupID, deviceID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return apperr.Conflict("device is already in the group")
		}
		return apperr.Internal("failed to add device to group", err)
	}
	return nil
}

func (s *Service) RemoveFromGroup(ctx context.Context, userID, groupID, deviceID uint) error {
	if err := s.ownsBoth(ctx, userID, groupID, deviceID); err != nil {
		return err
	}
	if err := s.groups.RemoveDevice(ctx, groupID, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.NotFound("device is not in the group")
		}
		return apperr.Internal("failed to remove device from group", err)
	}
	return nil
}

func (s *Service) ownsBoth(ctx context.Context, userID, groupID, deviceID uint) error {
	if _, err := s.groups.Get(ctx, userID, groupID); err != nil {
		return groupErr(err, "failed to get group")
	}
	if _, err := s.devices.GetOwned(ctx, userID, deviceID); err != nil {
		return notFoundOr(err, "failed to get device")
	}
	return nil
}

func groupErr(err error, msg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound("group not found")
	}
	return apperr.Internal(msg, err)
}
