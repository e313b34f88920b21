package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/audit"
	"github.com/airobot/server/internal/logging"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Auditor records authentication outcomes.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
	RecordFailedLogin(ctx context.Context, a audit.Actor, reason string)
	RecordMFAFailure(ctx context.Context, a audit.Actor)
}

// Service orchestrates authentication operations
type Service struct {
	users   repo.UserRepo
	roles   repo.RoleRepo
	jwt     *JWTService
	codes   *CodeStore
	sender  CodeSender
	auditor Auditor
	devMode bool
	logger  *zap.Logger
}

func NewService(
	users repo.UserRepo,
	roles repo.RoleRepo,
	jwt *JWTService,
	codes *CodeStore,
	sender CodeSender,
	auditor Auditor,
	devMode bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:   users,
		roles:   roles,
		jwt:     jwt,
		codes:   codes,
		sender:  sender,
		auditor: auditor,
		devMode: devMode,
		logger:  logger.Named("auth"),
	}
}

// Result is returned by every successful sign-in.
type Result struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	taken, err := s.users.ExistsUsernameOrEmail(ctx, in.Username, in.Email, 0)
	if err != nil {
		return Result{}, apperr.Internal("failed to register", err)
	}
	if taken {
		return Result{}, apperr.Conflict("username or email already exists")
	}

	u, err := s.createUser(ctx, in.Username, in.Email, in.Password, in.Phone, model.RoleUser)
	if err != nil {
		return Result{}, err
	}
	return s.issue(u)
}

// createUser hashes the password and assigns the named role.
func (s *Service) createUser(ctx context.Context, username, email, password, phone, roleName string) (model.User, error) {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.InvalidInput(fmt.Sprintf("role %q does not exist", roleName))
		}
		return model.User{}, apperr.Internal("failed to resolve role", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, apperr.Internal("failed to hash password", err)
	}

	u := model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RoleID:       role.ID,
		Status:       model.UserStatusActive,
	}
	if phone != "" {
		u.Phone = &phone
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, apperr.Conflict("username, email or phone already exists")
		}
		return model.User{}, apperr.Internal("failed to create user", err)
	}
	u.Role = &role
	return u, nil
}

type LoginInput struct {
	Login    string // username or email
	Password string
	MFACode  string
}

// Login authenticates with a password and, when enabled, a second factor.
func (s *Service) Login(ctx context.Context, in LoginInput, actor audit.Actor) (Result, error) {
	actor.Username = in.Login

	u, err := s.users.GetByLogin(ctx, in.Login)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.auditor.RecordFailedLogin(ctx, actor, "unknown user")
			return Result{}, apperr.Unauthorized("invalid username or password")
		}
		return Result{}, apperr.Internal("failed to log in", err)
	}
	actor.UserID = &u.ID
	actor.Username = u.Username

	if !CheckPassword(u.PasswordHash, in.Password) {
		s.auditor.RecordFailedLogin(ctx, actor, "invalid credentials")
		return Result{}, apperr.Unauthorized("invalid username or password")
	}
	if !u.Active() {
		return Result{}, apperr.Forbidden("account is disabled")
	}

	if u.MFAEnabled {
		if in.MFACode == "" {
			return Result{}, apperr.Unauthorized("mfa code required").WithData(map[string]bool{"mfa_required": true})
		}
		ok, err := s.consumeSecondFactor(ctx, &u, in.MFACode)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			s.auditor.RecordMFAFailure(ctx, actor)
			return Result{}, apperr.Unauthorized("invalid mfa code")
		}
	}

	s.auditor.Record(ctx, audit.Entry{Actor: actor, Operation: repo.OperationLogin, Module: "auth"})
	return s.issue(u)
}

// SendCodeResult carries the code back only in dev mode.
type SendCodeResult struct {
	DevCode string `json:"dev_code,omitempty"`
}

func (s *Service) SendCode(ctx context.Context, phone string) (SendCodeResult, error) {
	code, err := s.codes.Issue(phone)
	if err != nil {
		if errors.Is(err, ErrCodeStillValid) {
			return SendCodeResult{}, apperr.InvalidInput(err.Error())
		}
		return SendCodeResult{}, apperr.Internal("failed to issue code", err)
	}
	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		s.logger.Error("failed to deliver verification code", zap.String("phone", logging.MaskPhone(phone)), zap.Error(err))
		return SendCodeResult{}, apperr.Internal("failed to send code", err)
	}
	if s.devMode {
		return SendCodeResult{DevCode: code}, nil
	}
	return SendCodeResult{}, nil
}

// PhoneLogin verifies a code and signs in, creating the account on first use.
func (s *Service) PhoneLogin(ctx context.Context, phone, code string, actor audit.Actor) (Result, error) {
	actor.Username = phone
	if err := s.codes.Verify(phone, code); err != nil {
		s.auditor.RecordFailedLogin(ctx, actor, "invalid verification code")
		return Result{}, apperr.Unauthorized(ErrCodeInvalid.Error())
	}

	u, err := s.users.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		u, err = s.createPhoneUser(ctx, phone)
		if err != nil {
			return Result{}, err
		}
	case err != nil:
		return Result{}, apperr.Internal("failed to log in", err)
	}

	if !u.Active() {
		return Result{}, apperr.Forbidden("account is disabled")
	}
	actor.UserID = &u.ID
	actor.Username = u.Username
	s.auditor.Record(ctx, audit.Entry{Actor: actor, Operation: repo.OperationLogin, Module: "auth", Details: "phone"})
	return s.issue(u)
}

func (s *Service) createPhoneUser(ctx context.Context, phone string) (model.User, error) {
	suffix := phone
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	password, err := randomToken(18)
	if err != nil {
		return model.User{}, apperr.Internal("failed to generate password", err)
	}
	username := "user_" + suffix
	taken, err := s.users.ExistsUsernameOrEmail(ctx, username, phone+"@example.com", 0)
	if err != nil {
		return model.User{}, apperr.Internal("failed to create user", err)
	}
	if taken {
		extra, err := randomToken(3)
		if err != nil {
			return model.User{}, apperr.Internal("failed to create user", err)
		}
		username += "_" + extra
	}
	return s.createUser(ctx, username, phone+"@example.com", password, phone, model.RoleUser)
}

// Me returns the user with its role.
func (s *Service) Me(ctx context.Context, userID uint) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.NotFound("user not found")
		}
		return model.User{}, apperr.Internal("failed to load user", err)
	}
	return u, nil
}

func (s *Service) issue(u model.User) (Result, error) {
	token, err := s.jwt.SignToken(u.ID, u.Username, u.RoleName())
	if err != nil {
		return Result{}, apperr.Internal("failed to issue token", err)
	}
	return Result{Token: token, User: u}, nil
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
