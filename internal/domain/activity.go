package domain

import (
	"fmt"

	"shrimp/internal/clock"
)

// ActivityStatus is the state reported by an activity pulse.
type ActivityStatus string

const (
	StatusActive ActivityStatus = "active"
	StatusIdle   ActivityStatus = "idle"
)

// Valid reports whether s is a known status.
func (s ActivityStatus) Valid() bool {
	return s == StatusActive || s == StatusIdle
}

// Activity is a single active/idle pulse.
type Activity struct {
	ID        int64          `gorm:"primaryKey;column:id" json:"id"`
	Timestamp clock.Stamp    `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Status    ActivityStatus `gorm:"column:status;size:16;not null;check:chk_activity_status,status IN ('active','idle')" json:"status"`
	Details   *string        `gorm:"column:details;type:text" json:"details"`
}

// TableName returns the table name for GORM.
func (Activity) TableName() string {
	return "activity"
}

// Direction of a message batch.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// ParseDirection accepts "inbound", "outbound" or empty (no direction).
func ParseDirection(value string) (*Direction, error) {
	switch Direction(value) {
	case "":
		return nil, nil
	case Inbound, Outbound:
		d := Direction(value)
		return &d, nil
	default:
		return nil, fmt.Errorf("unknown direction %q", value)
	}
}

// Message records a batch of messages.
type Message struct {
	ID        int64       `gorm:"primaryKey;column:id" json:"id"`
	Timestamp clock.Stamp `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Count     int64       `gorm:"column:count;not null;default:1" json:"count"`
	SessionID *string     `gorm:"column:session_id;size:255" json:"session_id"`
	Direction *Direction  `gorm:"column:direction;size:16;check:chk_messages_direction,direction IN ('inbound','outbound')" json:"direction"`
}

// TableName returns the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// ToolEvent records invocations of a named tool.
type ToolEvent struct {
	ID        int64       `gorm:"primaryKey;column:id" json:"id"`
	Timestamp clock.Stamp `gorm:"column:timestamp;not null;index" json:"timestamp"`
	ToolName  string      `gorm:"column:tool_name;size:255;not null;index" json:"tool_name"`
	Count     int64       `gorm:"column:count;not null;default:1" json:"count"`
}

// TableName returns the table name for GORM.
func (ToolEvent) TableName() string {
	return "tools"
}
