package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/http/respond"
	"go.uber.org/zap"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, res, "registered")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode"`
}

// HandleLogin handles POST /api/auth/login. username may hold an email.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	login := req.Username
	if login == "" {
		login = req.Email
	}
	res, err := h.svc.Login(r.Context(), auth.LoginInput{Login: login, Password: req.Password, MFACode: req.MFACode}, actor(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, res)
}

type sendCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=6,max=20"`
}

// HandleSendCode handles POST /api/auth/send-code
func (h *AuthHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.svc.SendCode(r.Context(), req.Phone)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "verification code sent", Data: res})
}

type phoneLoginRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6"`
}

// HandlePhoneLogin handles POST /api/auth/phone-login
func (h *AuthHandler) HandlePhoneLogin(w http.ResponseWriter, r *http.Request) {
	var req phoneLoginRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.svc.PhoneLogin(r.Context(), req.Phone, req.Code, actor(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, res)
}

// HandleMe handles GET /api/auth/me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"user": u})
}

// HandleSetupMFA handles POST /api/auth/mfa/setup
func (h *AuthHandler) HandleSetupMFA(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.SetupMFA(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, setup)
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// HandleEnableMFA handles POST /api/auth/mfa/enable
func (h *AuthHandler) HandleEnableMFA(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	codes, err := h.svc.EnableMFA(r.Context(), userID(r), req.Code)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "two-factor authentication enabled", Data: map[string]any{"recovery_codes": codes}})
}

// HandleDisableMFA handles POST /api/auth/mfa/disable
func (h *AuthHandler) HandleDisableMFA(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.DisableMFA(r.Context(), userID(r), req.Code); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "two-factor authentication disabled"})
}
