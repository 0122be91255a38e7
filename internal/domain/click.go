package domain

import (
	"sort"

	"shrimp/internal/clock"
)

// Click is one successful redirect through a link. Header-derived fields are
// stored verbatim and are empty when the request did not carry them.
type Click struct {
	ID        int64       `gorm:"primaryKey;column:id" json:"id"`
	LinkID    int64       `gorm:"column:link_id;not null;index" json:"link_id"`
	ClickedAt clock.Stamp `gorm:"column:clicked_at;not null;index" json:"clicked_at"`
	Referrer  string      `gorm:"column:referrer;type:text" json:"referrer"`
	UserAgent string      `gorm:"column:user_agent;type:text" json:"user_agent"`
	IP        string      `gorm:"column:ip;size:255" json:"ip"`
	Country   string      `gorm:"column:country;size:64" json:"country"`
	City      string      `gorm:"column:city;size:128" json:"city"`

	// Relationships
	Link *Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Click) TableName() string {
	return "clicks"
}

// Visit carries the request metadata recorded with a click.
type Visit struct {
	Referrer  string
	UserAgent string
	IP        string
	Country   string
	City      string
}

// ClickAt builds the click row for a visit to linkID at the given instant.
func (v Visit) ClickAt(linkID int64, at clock.Stamp) *Click {
	return &Click{
		LinkID:    linkID,
		ClickedAt: at,
		Referrer:  v.Referrer,
		UserAgent: v.UserAgent,
		IP:        v.IP,
		Country:   v.Country,
		City:      v.City,
	}
}

// CountByKey is one row of a grouped count, e.g. top referrers.
type CountByKey struct {
	Key   string `gorm:"column:name" json:"key"`
	Count int64  `gorm:"column:total" json:"count"`
}

// SortCounts turns a count map into rows ordered by count desc, key asc,
// truncated to limit when limit > 0.
func SortCounts(counts map[string]int64, limit int) []CountByKey {
	out := make([]CountByKey, 0, len(counts))
	for k, n := range counts {
		out = append(out, CountByKey{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
