package repository

import (
	"context"
	"errors"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrSlugExists   = errors.New("slug already exists")
)

// LinkStorage persists links and their clicks.
type LinkStorage interface {
	// CreateLink inserts link and fills in its ID. A slug collision returns
	// ErrSlugExists; the unique index is the final arbiter.
	CreateLink(ctx context.Context, link *domain.Link) error
	GetLinkByID(ctx context.Context, id int64) (*domain.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// UpdateLink writes every mutable column of link.
	UpdateLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, id int64) error
	MarkReported(ctx context.Context, slug string, now clock.Stamp) error
	// ListLinks returns all links with click counts, newest first.
	ListLinks(ctx context.Context) ([]domain.LinkWithClicks, error)

	// ResolveAndRecordClick loads the link for slug and, only if it is live
	// at now, inserts one click, all in one transaction. Absent, disabled
	// and expired links all return ErrLinkNotFound.
	ResolveAndRecordClick(ctx context.Context, slug string, now clock.Stamp, visit domain.Visit) (*domain.Link, error)

	CountClicks(ctx context.Context, linkID int64) (int64, error)
	RecentClicks(ctx context.Context, linkID int64, limit int) ([]domain.Click, error)
	TopReferrers(ctx context.Context, linkID int64, limit int) ([]domain.CountByKey, error)
	TopCountries(ctx context.Context, linkID int64, limit int) ([]domain.CountByKey, error)
	// UserAgentCounts groups the link's clicks by raw user agent.
	UserAgentCounts(ctx context.Context, linkID int64) ([]domain.CountByKey, error)

	// PurgeExpired deletes links that expired before the given instant,
	// together with their clicks, and returns the number of links removed.
	PurgeExpired(ctx context.Context, before clock.Stamp) (int64, error)
}

// StatsStorage persists the activity dashboard's event streams.
type StatsStorage interface {
	InsertActivity(ctx context.Context, a *domain.Activity) error
	InsertMessage(ctx context.Context, m *domain.Message) error
	InsertToolEvent(ctx context.Context, t *domain.ToolEvent) error
	// UpsertSession merges update into the row for update.SessionID,
	// creating it if needed, and returns the stored result.
	UpsertSession(ctx context.Context, update domain.SessionUpdate, now clock.Stamp) (*domain.Session, error)

	// ActivityTotals counts pulses within f; Last is the newest pulse
	// overall, regardless of f.
	ActivityTotals(ctx context.Context, f domain.TimeFilter) (domain.ActivityTotals, error)
	MessageTotals(ctx context.Context, f domain.TimeFilter) (domain.MessageTotals, error)
	// ToolUsage sums counts per tool, ordered by total desc then name.
	ToolUsage(ctx context.Context, f domain.TimeFilter) ([]domain.ToolUsage, error)
	SessionTotals(ctx context.Context, f domain.TimeFilter) (domain.SessionTotals, error)

	// ListActivity and ListMessages return raw rows within f, oldest first.
	ListActivity(ctx context.Context, f domain.TimeFilter) ([]domain.Activity, error)
	ListMessages(ctx context.Context, f domain.TimeFilter) ([]domain.Message, error)
}

// Pinger is implemented by stores backed by a live connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
