// Package memory is an in-process implementation of the repository
// interfaces, used by tests and by `serve --driver memory`.
package memory

import (
	"context"
	"sort"
	"sync"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

type MemStorage struct {
	mu sync.RWMutex

	links  map[int64]*domain.Link
	slugs  map[string]int64
	clicks []domain.Click

	activity []domain.Activity
	messages []domain.Message
	tools    []domain.ToolEvent
	sessions map[string]*domain.Session

	nextID int64
}

func New() *MemStorage {
	return &MemStorage{
		links:    make(map[int64]*domain.Link),
		slugs:    make(map[string]int64),
		sessions: make(map[string]*domain.Session),
	}
}

func (s *MemStorage) id() int64 {
	s.nextID++
	return s.nextID
}

// Ping always succeeds.
func (s *MemStorage) Ping(context.Context) error { return nil }

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slugs[link.Slug]; exists {
		return repository.ErrSlugExists
	}
	link.ID = s.id()
	stored := *link
	s.links[link.ID] = &stored
	s.slugs[link.Slug] = link.ID
	return nil
}

func (s *MemStorage) GetLinkByID(_ context.Context, id int64) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (s *MemStorage) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slugs[slug]
	return ok, nil
}

func (s *MemStorage) UpdateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	if link.Slug != current.Slug {
		if _, taken := s.slugs[link.Slug]; taken {
			return repository.ErrSlugExists
		}
		delete(s.slugs, current.Slug)
		s.slugs[link.Slug] = link.ID
	}
	stored := *link
	stored.CreatedAt = current.CreatedAt
	s.links[link.ID] = &stored
	return nil
}

func (s *MemStorage) DeleteLink(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return repository.ErrLinkNotFound
	}
	s.removeLinkLocked(link)
	return nil
}

func (s *MemStorage) removeLinkLocked(link *domain.Link) {
	delete(s.slugs, link.Slug)
	delete(s.links, link.ID)

	kept := s.clicks[:0]
	for _, c := range s.clicks {
		if c.LinkID != link.ID {
			kept = append(kept, c)
		}
	}
	s.clicks = kept
}

func (s *MemStorage) MarkReported(_ context.Context, slug string, now clock.Stamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.slugs[slug]
	if !ok {
		return repository.ErrLinkNotFound
	}
	s.links[id].Reported = true
	s.links[id].UpdatedAt = now
	return nil
}

func (s *MemStorage) ListLinks(_ context.Context) ([]domain.LinkWithClicks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int64, len(s.links))
	for _, c := range s.clicks {
		counts[c.LinkID]++
	}

	out := make([]domain.LinkWithClicks, 0, len(s.links))
	for _, link := range s.links {
		out = append(out, domain.LinkWithClicks{Link: *link, ClickCount: counts[link.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemStorage) ResolveAndRecordClick(_ context.Context, slug string, now clock.Stamp, visit domain.Visit) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.slugs[slug]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link := s.links[id]
	if !link.IsLive(now) {
		return nil, repository.ErrLinkNotFound
	}

	click := visit.ClickAt(link.ID, now)
	click.ID = s.id()
	s.clicks = append(s.clicks, *click)

	out := *link
	return &out, nil
}

func (s *MemStorage) CountClicks(_ context.Context, linkID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.clicks {
		if c.LinkID == linkID {
			n++
		}
	}
	return n, nil
}

func (s *MemStorage) RecentClicks(_ context.Context, linkID int64, limit int) ([]domain.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Click{}
	for i := len(s.clicks) - 1; i >= 0; i-- {
		if s.clicks[i].LinkID == linkID {
			out = append(out, s.clicks[i])
		}
	}
	// newest first, ties broken by id descending, then truncate
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClickedAt > out[j].ClickedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStorage) TopReferrers(_ context.Context, linkID int64, limit int) ([]domain.CountByKey, error) {
	return s.groupClicks(linkID, limit, func(c domain.Click) string { return c.Referrer }), nil
}

func (s *MemStorage) TopCountries(_ context.Context, linkID int64, limit int) ([]domain.CountByKey, error) {
	return s.groupClicks(linkID, limit, func(c domain.Click) string { return c.Country }), nil
}

func (s *MemStorage) UserAgentCounts(_ context.Context, linkID int64) ([]domain.CountByKey, error) {
	return s.groupClicks(linkID, 0, func(c domain.Click) string { return c.UserAgent }), nil
}

func (s *MemStorage) groupClicks(linkID int64, limit int, key func(domain.Click) string) []domain.CountByKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, c := range s.clicks {
		if c.LinkID != linkID {
			continue
		}
		if k := key(c); k != "" {
			counts[k]++
		}
	}
	return domain.SortCounts(counts, limit)
}

func (s *MemStorage) PurgeExpired(_ context.Context, before clock.Stamp) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, link := range s.links {
		if link.ExpiresAt != nil && *link.ExpiresAt < before {
			s.removeLinkLocked(link)
			removed++
		}
	}
	return removed, nil
}
