// Package admin implements user, role and permission management. Every write
// is recorded in the operation log.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/audit"
	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

const module = "user_management"

// Auditor records operation log entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	users   repo.UserRepo
	roles   repo.RoleRepo
	auditor Auditor
	logger  *zap.Logger
}

func NewService(users repo.UserRepo, roles repo.RoleRepo, auditor Auditor, logger *zap.Logger) *Service {
	return &Service{users: users, roles: roles, auditor: auditor, logger: logger.Named("admin")}
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}
	return users, nil
}

type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	RoleID   uint
}

func (s *Service) CreateUser(ctx context.Context, actor audit.Actor, in CreateUserInput) (model.User, error) {
	in.Username, in.Email = strings.TrimSpace(in.Username), strings.TrimSpace(in.Email)
	if in.Username == "" || len(in.Password) < 6 {
		return model.User{}, apperr.InvalidInput("username and a password of at least 6 characters are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return model.User{}, apperr.InvalidInput("email is invalid")
	}
	role, err := s.resolveRole(ctx, in.RoleID)
	if err != nil {
		return model.User{}, err
	}
	taken, err := s.users.ExistsUsernameOrEmail(ctx, in.Username, in.Email, 0)
	if err != nil {
		return model.User{}, apperr.Internal("failed to check user", err)
	}
	if taken {
		return model.User{}, apperr.Conflict("user already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.User{}, apperr.Internal("failed to hash password", err)
	}
	u := model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
		Status:       model.UserStatusActive,
	}
	if in.Phone != "" {
		u.Phone = &in.Phone
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, apperr.Conflict("user already exists")
		}
		return model.User{}, apperr.Internal("failed to create user", err)
	}
	u.Role = &role

	s.record(ctx, actor, "create_user", "Created user "+u.Username)
	return u, nil
}

// UpdateUserInput leaves nil fields unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Phone    *string
	RoleID   *uint
	Status   *string
}

func (s *Service) UpdateUser(ctx context.Context, actor audit.Actor, id uint, in UpdateUserInput) (model.User, error) {
	current, err := s.getUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	fields := map[string]any{}
	username, email := current.Username, current.Email
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if username == "" {
			return model.User{}, apperr.InvalidInput("username must not be empty")
		}
		fields["username"] = username
	}
	if in.Email != nil {
		email = strings.TrimSpace(*in.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return model.User{}, apperr.InvalidInput("email is invalid")
		}
		fields["email"] = email
	}
	if in.Phone != nil {
		if *in.Phone == "" {
			fields["phone"] = nil
		} else {
			fields["phone"] = *in.Phone
		}
	}
	if in.RoleID != nil {
		role, err := s.resolveRole(ctx, *in.RoleID)
		if err != nil {
			return model.User{}, err
		}
		fields["role_id"] = role.ID
	}
	if in.Status != nil {
		if *in.Status != model.UserStatusActive && *in.Status != model.UserStatusDisabled {
			return model.User{}, apperr.InvalidInput("status must be active or disabled")
		}
		fields["status"] = *in.Status
	}
	if len(fields) == 0 {
		return current, nil
	}

	if in.Username != nil || in.Email != nil {
		taken, err := s.users.ExistsUsernameOrEmail(ctx, username, email, id)
		if err != nil {
			return model.User{}, apperr.Internal("failed to check user", err)
		}
		if taken {
			return model.User{}, apperr.Conflict("username or email already exists")
		}
	}
	if err := s.users.Update(ctx, id, fields); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, apperr.Conflict("username, email or phone already exists")
		}
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.NotFound("user not found")
		}
		return model.User{}, apperr.Internal("failed to update user", err)
	}

	s.record(ctx, actor, "update_user", "Updated user "+username)
	return s.getUser(ctx, id)
}

// DisableUser blocks the account from signing in. Admins cannot disable
// themselves.
func (s *Service) DisableUser(ctx context.Context, actor audit.Actor, id uint) error {
	if actor.UserID != nil && *actor.UserID == id {
		return apperr.InvalidInput("you cannot disable your own account")
	}
	u, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, id, map[string]any{"status": model.UserStatusDisabled}); err != nil {
		return apperr.Internal("failed to disable user", err)
	}
	s.record(ctx, actor, "disable_user", "Disabled user "+u.Username)
	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list roles", err)
	}
	return roles, nil
}

func (s *Service) CreateRole(ctx context.Context, actor audit.Actor, name, description string) (model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Role{}, apperr.InvalidInput("role name is required")
	}
	role := model.Role{Name: name, Description: description}
	if err := s.roles.Create(ctx, &role); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Role{}, apperr.Conflict("role already exists")
		}
		return model.Role{}, apperr.Internal("failed to create role", err)
	}
	s.record(ctx, actor, "create_role", "Created role "+name)
	return role, nil
}

// AssignPermissions replaces the role's permission set.
func (s *Service) AssignPermissions(ctx context.Context, actor audit.Actor, roleID uint, permissionIDs []uint) (model.Role, error) {
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Role{}, apperr.NotFound("role not found")
		}
		return model.Role{}, apperr.Internal("failed to get role", err)
	}

	distinct := dedupe(permissionIDs)
	n, err := s.roles.CountPermissions(ctx, distinct)
	if err != nil {
		return model.Role{}, apperr.Internal("failed to check permissions", err)
	}
	if int(n) != len(distinct) {
		return model.Role{}, apperr.InvalidInput("one or more permissions do not exist")
	}
	if err := s.roles.ReplacePermissions(ctx, roleID, distinct); err != nil {
		return model.Role{}, apperr.Internal("failed to assign permissions", err)
	}

	s.record(ctx, actor, "assign_permissions", fmt.Sprintf("Assigned %d permissions to role %d", len(distinct), roleID))
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return model.Role{}, apperr.Internal("failed to get role", err)
	}
	return role, nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	perms, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list permissions", err)
	}
	return perms, nil
}

func (s *Service) CreatePermission(ctx context.Context, actor audit.Actor, name, description, mod string) (model.Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Permission{}, apperr.InvalidInput("permission name is required")
	}
	p := model.Permission{Name: name, Description: description, Module: mod}
	if err := s.roles.CreatePermission(ctx, &p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Permission{}, apperr.Conflict("permission already exists")
		}
		return model.Permission{}, apperr.Internal("failed to create permission", err)
	}
	s.record(ctx, actor, "create_permission", "Created permission "+name)
	return p, nil
}

func (s *Service) resolveRole(ctx context.Context, id uint) (model.Role, error) {
	var (
		role model.Role
		err  error
	)
	if id == 0 {
		role, err = s.roles.GetByName(ctx, model.RoleUser)
	} else {
		role, err = s.roles.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Role{}, apperr.InvalidInput("role does not exist")
		}
		return model.Role{}, apperr.Internal("failed to resolve role", err)
	}
	return role, nil
}

func (s *Service) getUser(ctx context.Context, id uint) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.NotFound("user not found")
		}
		return model.User{}, apperr.Internal("failed to get user", err)
	}
	return u, nil
}

func (s *Service) record(ctx context.Context, actor audit.Actor, op, details string) {
	s.auditor.Record(ctx, audit.Entry{Actor: actor, Operation: op, Module: module, Details: details})
	s.logger.Info("admin operation", zap.String("operation", op), zap.String("actor", actor.Username))
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
