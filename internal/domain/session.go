package domain

import "shrimp/internal/clock"

// Session is the running tally of one agent session, keyed by SessionID.
type Session struct {
	ID               int64        `gorm:"primaryKey;column:id" json:"id"`
	SessionID        string       `gorm:"column:session_id;size:255;uniqueIndex;not null" json:"session_id"`
	StartedAt        clock.Stamp  `gorm:"column:started_at;not null;index" json:"started_at"`
	EndedAt          *clock.Stamp `gorm:"column:ended_at" json:"ended_at"`
	MessagesCount    int64        `gorm:"column:messages_count;not null;default:0" json:"messages_count"`
	ToolsCount       int64        `gorm:"column:tools_count;not null;default:0" json:"tools_count"`
	SubAgentsSpawned int64        `gorm:"column:sub_agents_spawned;not null;default:0" json:"sub_agents_spawned"`
}

// TableName returns the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// SessionUpdate is a partial session write. Nil fields leave the stored
// value untouched.
type SessionUpdate struct {
	SessionID        string       `json:"session_id"`
	StartedAt        *clock.Stamp `json:"started_at"`
	EndedAt          *clock.Stamp `json:"ended_at"`
	MessagesCount    *int64       `json:"messages_count"`
	ToolsCount       *int64       `json:"tools_count"`
	SubAgentsSpawned *int64       `json:"sub_agents_spawned"`
}

// MergeSession applies update on top of existing and returns the result.
// Every field is taken from update when present, from existing otherwise.
// Neither argument is modified.
func MergeSession(existing Session, update SessionUpdate) Session {
	merged := existing
	if update.StartedAt != nil {
		merged.StartedAt = *update.StartedAt
	}
	if update.EndedAt != nil {
		ended := *update.EndedAt
		merged.EndedAt = &ended
	} else if existing.EndedAt != nil {
		ended := *existing.EndedAt
		merged.EndedAt = &ended
	}
	if update.MessagesCount != nil {
		merged.MessagesCount = *update.MessagesCount
	}
	if update.ToolsCount != nil {
		merged.ToolsCount = *update.ToolsCount
	}
	if update.SubAgentsSpawned != nil {
		merged.SubAgentsSpawned = *update.SubAgentsSpawned
	}
	return merged
}

// NewSession builds the first row for update. A missing start time
// defaults to now and missing counters to zero.
func NewSession(update SessionUpdate, now clock.Stamp) Session {
	return MergeSession(Session{SessionID: update.SessionID, StartedAt: now}, update)
}
