package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
	"shrimp/pkg/useragent"
)

const (
	recentClicksLimit = 50
	topKeysLimit      = 10

	// maxExpiryHours is 100 years, well inside time.Duration's range.
	maxExpiryHours = 100 * 365 * 24
)

// CreateLinkInput is a request to shorten URL. ExpiresIn is in hours.
type CreateLinkInput struct {
	URL       string   `json:"url"`
	Slug      string   `json:"slug,omitempty"`
	ExpiresIn *float64 `json:"expires_in,omitempty"`
}

// UpdateLinkInput changes a link. Empty fields leave the value unchanged.
type UpdateLinkInput struct {
	URL       string   `json:"url,omitempty"`
	Slug      string   `json:"slug,omitempty"`
	ExpiresIn *float64 `json:"expires_in,omitempty"`
}

// UserAgentParser classifies raw user agents for analytics.
type UserAgentParser interface {
	ParseUserAgent(userAgent string) *useragent.DeviceInfo
}

// LinkService owns the link lifecycle: creation, admin edits, reports and
// redirect resolution.
type LinkService struct {
	store     repository.LinkStorage
	slugs     *SlugAllocator
	blocklist Blocklist
	ua        UserAgentParser
	clock     clock.Clock
	log       *zap.Logger
}

func NewLinkService(
	store repository.LinkStorage,
	slugs *SlugAllocator,
	blocklist Blocklist,
	ua UserAgentParser,
	c clock.Clock,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		store:     store,
		slugs:     slugs,
		blocklist: blocklist,
		ua:        ua,
		clock:     c,
		log:       log,
	}
}

func expiryFrom(now clock.Stamp, hours *float64) (*clock.Stamp, error) {
	if hours == nil {
		return nil, nil
	}
	if !(*hours > 0) {
		return nil, invalid("expires_in", "must be a positive number of hours")
	}
	if *hours > maxExpiryHours {
		return nil, invalid("expires_in", "must be at most %d hours", maxExpiryHours)
	}
	return now.Add(time.Duration(*hours * float64(time.Hour))).Ptr(), nil
}

// Create validates in and stores a new link under a unique slug.
func (s *LinkService) Create(ctx context.Context, in CreateLinkInput) (*domain.Link, error) {
	target, err := ValidateURL(in.URL, s.blocklist)
	if err != nil {
		return nil, err
	}

	now := clock.NowStamp(s.clock)
	expiresAt, err := expiryFrom(now, in.ExpiresIn)
	if err != nil {
		return nil, err
	}

	link := &domain.Link{
		URL:       target,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.slugs.Allocate(ctx, link, in.Slug); err != nil {
		return nil, err
	}

	s.log.Info("link created", zap.Int64("id", link.ID), zap.String("slug", link.Slug))
	return link, nil
}

func (s *LinkService) get(ctx context.Context, id int64) (*domain.Link, error) {
	link, err := s.store.GetLinkByID(ctx, id)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// Get returns a link by id in any state.
func (s *LinkService) Get(ctx context.Context, id int64) (*domain.Link, error) {
	return s.get(ctx, id)
}

// Update applies in to the link with the given id.
func (s *LinkService) Update(ctx context.Context, id int64, in UpdateLinkInput) (*domain.Link, error) {
	link, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := clock.NowStamp(s.clock)

	if in.URL != "" {
		target, err := ValidateURL(in.URL, s.blocklist)
		if err != nil {
			return nil, err
		}
		link.URL = target
	}
	if in.Slug != "" && in.Slug != link.Slug {
		if err := ValidateSlug(in.Slug); err != nil {
			return nil, err
		}
		link.Slug = in.Slug
	}
	if in.ExpiresIn != nil {
		expiresAt, err := expiryFrom(now, in.ExpiresIn)
		if err != nil {
			return nil, err
		}
		link.ExpiresAt = expiresAt
	}
	link.UpdatedAt = now

	return link, s.save(ctx, link)
}

func (s *LinkService) save(ctx context.Context, link *domain.Link) error {
	err := s.store.UpdateLink(ctx, link)
	switch {
	case errors.Is(err, repository.ErrSlugExists):
		return fmt.Errorf("%w: slug %q is already in use", ErrConflict, link.Slug)
	case errors.Is(err, repository.ErrLinkNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to update link: %w", err)
	}
	return nil
}

// Delete removes a link and its click history.
func (s *LinkService) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteLink(ctx, id)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

// ToggleDisabled flips the disabled flag. Re-enabling a link also clears
// its reported flag, since an admin has reviewed it.
func (s *LinkService) ToggleDisabled(ctx context.Context, id int64) (*domain.Link, error) {
	link, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	link.Disabled = !link.Disabled
	if !link.Disabled {
		link.Reported = false
	}
	link.UpdatedAt = clock.NowStamp(s.clock)

	if err := s.save(ctx, link); err != nil {
		return nil, err
	}

	s.log.Info("link toggled", zap.Int64("id", id), zap.Bool("disabled", link.Disabled))
	return link, nil
}

// Report flags the link with the given slug for review. Links in any state
// can be reported.
func (s *LinkService) Report(ctx context.Context, slug string) error {
	err := s.store.MarkReported(ctx, slug, clock.NowStamp(s.clock))
	if errors.Is(err, repository.ErrLinkNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to report link: %w", err)
	}

	s.log.Info("link reported", zap.String("slug", slug))
	return nil
}

// List returns all links with click counts, newest first.
func (s *LinkService) List(ctx context.Context) ([]domain.LinkWithClicks, error) {
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	if links == nil {
		links = []domain.LinkWithClicks{}
	}
	return links, nil
}

// Resolve returns the destination of a live link and records the visit.
// Absent, disabled and expired links all yield ErrNotFound. If the click
// cannot be stored the redirect fails too.
func (s *LinkService) Resolve(ctx context.Context, slug string, visit domain.Visit) (string, error) {
	link, err := s.store.ResolveAndRecordClick(ctx, slug, clock.NowStamp(s.clock), visit)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve link: %w", err)
	}
	return link.URL, nil
}

// PurgeExpired deletes links that expired more than retention ago.
func (s *LinkService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	before := clock.NowStamp(s.clock).Add(-retention)
	removed, err := s.store.PurgeExpired(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired links: %w", err)
	}
	return removed, nil
}

// Analytics gathers click statistics for one link.
func (s *LinkService) Analytics(ctx context.Context, id int64) (*domain.LinkAnalytics, error) {
	link, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &domain.LinkAnalytics{Link: *link}

	if out.ClickCount, err = s.store.CountClicks(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	if out.RecentClicks, err = s.store.RecentClicks(ctx, id, recentClicksLimit); err != nil {
		return nil, fmt.Errorf("failed to get recent clicks: %w", err)
	}
	if out.Referrers, err = s.store.TopReferrers(ctx, id, topKeysLimit); err != nil {
		return nil, fmt.Errorf("failed to get referrers: %w", err)
	}
	if out.Countries, err = s.store.TopCountries(ctx, id, topKeysLimit); err != nil {
		return nil, fmt.Errorf("failed to get countries: %w", err)
	}

	agents, err := s.store.UserAgentCounts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user agents: %w", err)
	}
	out.Devices, out.Browsers = s.breakdown(agents, out.ClickCount)

	return out, nil
}

// breakdown folds raw user agent counts into device and browser counts.
// Clicks without a user agent count as unknown.
func (s *LinkService) breakdown(agents []domain.CountByKey, total int64) (devices, browsers []domain.CountByKey) {
	deviceCounts := make(map[string]int64)
	browserCounts := make(map[string]int64)

	var seen int64
	for _, a := range agents {
		seen += a.Count
		device, browser := useragent.Unknown, useragent.Unknown
		if s.ua != nil {
			info := s.ua.ParseUserAgent(a.Key)
			device, browser = info.DeviceType, info.Browser
		}
		deviceCounts[device] += a.Count
		browserCounts[browser] += a.Count
	}
	if rest := total - seen; rest > 0 {
		deviceCounts[useragent.Unknown] += rest
		browserCounts[useragent.Unknown] += rest
	}

	return domain.SortCounts(deviceCounts, 0), domain.SortCounts(browserCounts, 0)
}
