package handlers

import (
	"net/http"

	"github.com/airobot/server/internal/admin"
	"github.com/airobot/server/internal/audit"
	"github.com/airobot/server/internal/http/respond"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
)

// AdminHandler serves user, role, permission and log management.
type AdminHandler struct {
	svc    *admin.Service
	audit  *audit.Service
	logger *zap.Logger
}

func NewAdminHandler(svc *admin.Service, auditSvc *audit.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, audit: auditSvc, logger: logger}
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"users": users})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	RoleID   uint   `json:"role_id"`
}

func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	u, err := h.svc.CreateUser(r.Context(), actor(r), admin.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		RoleID:   req.RoleID,
	})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"user": u}, "user created")
}

type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	RoleID   *uint   `json:"role_id"`
	Status   *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req updateUserRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	u, err := h.svc.UpdateUser(r.Context(), actor(r), id, admin.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		RoleID:   req.RoleID,
		Status:   req.Status,
	})
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"user": u})
}

func (h *AdminHandler) HandleDisableUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.DisableUser(r.Context(), actor(r), id); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "user disabled"})
}

func (h *AdminHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"roles": roles})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

func (h *AdminHandler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	role, err := h.svc.CreateRole(r.Context(), actor(r), req.Name, req.Description)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"role": role}, "role created")
}

type assignRequest struct {
	RoleID        uint   `json:"role_id" validate:"required,gt=0"`
	PermissionIDs []uint `json:"permission_ids" validate:"dive,gt=0"`
}

// HandleAssignPermissions handles POST /api/admin/roles/permissions
func (h *AdminHandler) HandleAssignPermissions(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	role, err := h.svc.AssignPermissions(r.Context(), actor(r), req.RoleID, req.PermissionIDs)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"role": role})
}

func (h *AdminHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.ListPermissions(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, map[string]any{"permissions": perms})
}

type permissionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
	Module      string `json:"module" validate:"required,max=50"`
}

func (h *AdminHandler) HandleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	p, err := h.svc.CreatePermission(r.Context(), actor(r), req.Name, req.Description, req.Module)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Created(w, map[string]any{"permission": p}, "permission created")
}

func pageFrom(r *http.Request) (repo.Page, error) {
	page, err := queryPage(r)
	if err != nil {
		return repo.Page{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return repo.Page{}, err
	}
	return repo.Page{Page: page, Limit: limit}, nil
}

// HandleListLogs handles GET /api/admin/logs?page=&limit=
func (h *AdminHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	p, err := pageFrom(r)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.audit.ListOperations(r.Context(), p)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, res)
}

// HandleListAnomalies handles GET /api/admin/anomalies?status=&page=&limit=
func (h *AdminHandler) HandleListAnomalies(w http.ResponseWriter, r *http.Request) {
	p, err := pageFrom(r)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	res, err := h.audit.ListAnomalies(r.Context(), r.URL.Query().Get("status"), p)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.OK(w, res)
}

type resolveRequest struct {
	Status string `json:"status"`
}

// HandleResolveAnomaly handles PUT /api/admin/anomalies/{id}/resolve
func (h *AdminHandler) HandleResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req resolveRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			fail(h.logger, w, r, err)
			return
		}
	}
	if err := h.audit.ResolveAnomaly(r.Context(), id, req.Status, userID(r)); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	respond.Write(w, respond.Result{Message: "anomaly updated"})
}
