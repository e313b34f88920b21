package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

const (
	ActionBasic       = "basic"
	ActionCustom      = "custom"
	ActionCombination = "combination"

	// MaxCombinationDuration caps the summed step duration of a combination, in seconds.
	MaxCombinationDuration = 3.0
)

// ValidActionType reports whether t is a known action type.
func ValidActionType(t string) bool {
	return t == ActionBasic || t == ActionCustom || t == ActionCombination
}

// Action is a named robot behavior. Steps holds text labels for basic and
// custom actions and referenced action ids for combinations.
type Action struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Type        string         `gorm:"size:20;not null" json:"type"`
	Duration    float64        `gorm:"not null" json:"duration"`
	Steps       datatypes.JSON `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (a *Action) IsCombination() bool { return a.Type == ActionCombination }

// StepLabels decodes Steps as text labels.
func (a *Action) StepLabels() ([]string, error) {
	return DecodeStepLabels(a.Steps)
}

// StepIDs decodes Steps as referenced action ids.
func (a *Action) StepIDs() ([]uint, error) {
	return DecodeStepIDs(a.Steps)
}

// DecodeStepLabels parses a JSON list of strings. Null or empty input is an empty list.
func DecodeStepLabels(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("steps must be a list of strings: %w", err)
	}
	return labels, nil
}

// DecodeStepIDs parses a JSON list of positive integer ids. Numeric strings
// are accepted since clients often submit form values.
func DecodeStepIDs(raw []byte) ([]uint, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []uint{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("steps must be a list of action ids: %w", err)
	}
	ids := make([]uint, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			s = string(item)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("step %d is not a valid action id: %s", i, string(item))
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}

// EncodeSteps marshals labels or ids into the JSON column form.
func EncodeSteps(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

// DeviceAction binds a catalog action to a device with a trigger phrase.
type DeviceAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"uniqueIndex:idx_device_action;not null" json:"device_id"`
	ActionID  uint      `gorm:"uniqueIndex:idx_device_action;not null" json:"action_id"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	Action    *Action   `gorm:"foreignKey:ActionID" json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation is one persisted chat turn.
type Conversation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	DeviceID        uint      `gorm:"index;not null" json:"device_id"`
	Message         string    `gorm:"type:text;not null" json:"message"`
	Response        string    `gorm:"type:text" json:"response"`
	ActionTriggered *uint     `json:"action_triggered"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
