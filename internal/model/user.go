package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account that owns devices. PasswordHash and MFA secrets are
// never serialized.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email            string         `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone            *string        `gorm:"size:20;uniqueIndex" json:"phone,omitempty"`
	PasswordHash     string         `gorm:"column:password;not null" json:"-"`
	RoleID           uint           `gorm:"index" json:"role_id"`
	Role             *Role          `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Status           string         `gorm:"size:20;not null;default:active" json:"status"`
	MFAEnabled       bool           `gorm:"column:mfa_enabled;not null;default:false" json:"mfa_enabled"`
	MFASecret        string         `gorm:"column:mfa_secret" json:"-"`
	MFARecoveryCodes datatypes.JSON `gorm:"column:mfa_recovery_codes" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Active reports whether the account may sign in.
func (u *User) Active() bool { return u.Status != UserStatusDisabled }

// RoleName returns the loaded role's name, or "" when not preloaded.
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

type Role struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string       `gorm:"size:255" json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions;joinForeignKey:RoleID;joinReferences:PermissionID" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Permission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Module      string    `gorm:"size:50" json:"module"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RolePermission struct {
	RoleID       uint `gorm:"primaryKey" json:"role_id"`
	PermissionID uint `gorm:"primaryKey" json:"permission_id"`
}
