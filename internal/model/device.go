package model

import "time"

const (
	DeviceOnline  = "online"
	DeviceOffline = "offline"
)

// ValidDeviceStatus reports whether s is a known device status.
func ValidDeviceStatus(s string) bool {
	return s == DeviceOnline || s == DeviceOffline
}

type Device struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	Name       string     `gorm:"column:device_name;size:100;not null" json:"device_name"`
	Type       string     `gorm:"column:device_type;size:50;not null" json:"device_type"`
	Status     string     `gorm:"size:20;not null;default:offline" json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type DeviceGroup struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Devices     []Device  `gorm:"many2many:device_group_relations;joinForeignKey:GroupID;joinReferences:DeviceID" json:"devices,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DeviceGroupRelation struct {
	DeviceID  uint      `gorm:"primaryKey" json:"device_id"`
	GroupID   uint      `gorm:"primaryKey" json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}
