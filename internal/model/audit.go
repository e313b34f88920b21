package model

import "time"

const (
	OpSuccess = "success"
	OpFailed  = "failed"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"

	AnomalyUnresolved = "unresolved"
	AnomalyResolved   = "resolved"
	AnomalyIgnored    = "ignored"

	EventFailedLogin           = "failed_login"
	EventMultipleLoginAttempts = "multiple_login_attempts"
	EventMFAFailure            = "mfa_failure"
	EventSuspiciousOperation   = "suspicious_operation"
)

type OperationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Username  string    `gorm:"size:50" json:"username"`
	Operation string    `gorm:"size:100;not null" json:"operation"`
	Module    string    `gorm:"size:50;not null" json:"module"`
	IP        string    `gorm:"size:64" json:"ip"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type AnomalyLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     *uint      `gorm:"index" json:"user_id"`
	Username   string     `gorm:"size:50" json:"username"`
	EventType  string     `gorm:"size:50;not null;index" json:"event_type"`
	IP         string     `gorm:"size:64" json:"ip"`
	Location   string     `gorm:"size:100" json:"location"`
	UserAgent  string     `gorm:"type:text" json:"user_agent"`
	Details    string     `gorm:"type:text" json:"details"`
	Severity   string     `gorm:"size:20;not null" json:"severity"`
	Status     string     `gorm:"size:20;not null;default:unresolved" json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *uint      `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Role{}, &Permission{}, &RolePermission{}, &User{},
		&Device{}, &DeviceGroup{}, &DeviceGroupRelation{},
		&Action{}, &DeviceAction{}, &Conversation{},
		&OperationLog{}, &AnomalyLog{},
	}
}
