package domain

import "shrimp/internal/clock"

// ActivityTotals counts activity pulses in a window.
type ActivityTotals struct {
	Total  int64     `json:"total"`
	Active int64     `json:"active"`
	Idle   int64     `json:"idle"`
	Last   *Activity `json:"last"`
}

// MessageTotals sums message counts in a window.
type MessageTotals struct {
	Total    int64 `json:"total"`
	Inbound  int64 `json:"inbound"`
	Outbound int64 `json:"outbound"`
}

// ToolUsage is the summed count for one tool.
type ToolUsage struct {
	ToolName string `gorm:"column:tool_name" json:"tool_name"`
	Total    int64  `gorm:"column:total" json:"total"`
}

// SessionTotals counts sessions started in a window.
type SessionTotals struct {
	Total            int64 `json:"total"`
	SubAgentsSpawned int64 `json:"sub_agents_spawned"`
}

// Summary is the dashboard's headline view for one range.
type Summary struct {
	Activity ActivityTotals `json:"activity"`
	Messages MessageTotals  `json:"messages"`
	Tools    []ToolUsage    `json:"tools"`
	Sessions SessionTotals  `json:"sessions"`
}

// ActivityPoint is one timeline bucket of activity pulses.
type ActivityPoint struct {
	Period string `json:"period"`
	Active int64  `json:"active"`
	Idle   int64  `json:"idle"`
}

// MessagePoint is one timeline bucket of message counts.
type MessagePoint struct {
	Period string `json:"period"`
	Total  int64  `json:"total"`
}

// Timeline holds the bucketed series for one range. Only non-empty
// periods appear, in ascending order.
type Timeline struct {
	Activity []ActivityPoint `json:"activity"`
	Messages []MessagePoint  `json:"messages"`
}

// LinkAnalytics is the admin drill-down for a single link.
type LinkAnalytics struct {
	Link         Link         `json:"link"`
	ClickCount   int64        `json:"click_count"`
	RecentClicks []Click      `json:"recent_clicks"`
	Referrers    []CountByKey `json:"referrers"`
	Countries    []CountByKey `json:"countries"`
	Devices      []CountByKey `json:"devices"`
	Browsers     []CountByKey `json:"browsers"`
}

// TimeFilter restricts an aggregate query to rows at or after Since.
// A nil Since means no restriction.
type TimeFilter struct {
	Since *clock.Stamp
}

// Includes reports whether ts falls in the filter.
func (f TimeFilter) Includes(ts clock.Stamp) bool {
	return f.Since == nil || ts >= *f.Since
}
