package domain

import "shrimp/internal/clock"

// LinkState is the resolution state of a link at a given instant.
type LinkState int

const (
	LinkLive LinkState = iota
	LinkDisabled
	LinkExpired
)

func (s LinkState) String() string {
	switch s {
	case LinkLive:
		return "live"
	case LinkDisabled:
		return "disabled"
	case LinkExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Link is a shortened URL.
type Link struct {
	ID        int64        `gorm:"primaryKey;column:id" json:"id"`
	Slug      string       `gorm:"column:slug;size:64;uniqueIndex;not null" json:"slug"`
	URL       string       `gorm:"column:url;type:text;not null" json:"url"`
	CreatedAt clock.Stamp  `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt clock.Stamp  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	ExpiresAt *clock.Stamp `gorm:"column:expires_at;index" json:"expires_at"`
	Disabled  bool         `gorm:"column:disabled;not null;default:false" json:"disabled"`
	Reported  bool         `gorm:"column:reported;not null;default:false" json:"reported"`
}

// TableName returns the table name for GORM.
func (Link) TableName() string {
	return "links"
}

// StateAt evaluates the lifecycle state of l at now. Disabled wins over
// Expired. A link whose expiry equals now is already expired.
func (l *Link) StateAt(now clock.Stamp) LinkState {
	if l.Disabled {
		return LinkDisabled
	}
	if l.ExpiresAt != nil && *l.ExpiresAt <= now {
		return LinkExpired
	}
	return LinkLive
}

// IsLive reports whether l resolves at now.
func (l *Link) IsLive(now clock.Stamp) bool {
	return l.StateAt(now) == LinkLive
}

// LinkWithClicks is a link plus its total click count, used for listings.
type LinkWithClicks struct {
	Link
	ClickCount int64 `gorm:"column:click_count" json:"click_count"`
}
