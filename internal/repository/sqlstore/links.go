package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

// CreateLink inserts a new link.
func (s *Store) CreateLink(ctx context.Context, link *domain.Link) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return repository.ErrSlugExists
		}
		s.log.Error("failed to save link", zap.String("slug", link.Slug), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.Int64("id", link.ID), zap.String("slug", link.Slug))
	return nil
}

// GetLinkByID fetches a link by its surrogate key.
func (s *Store) GetLinkByID(ctx context.Context, id int64) (*domain.Link, error) {
	var link domain.Link
	err := s.db.WithContext(ctx).First(&link, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// SlugExists reports whether any link, live or not, owns slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Link{}).Where("slug = ?", slug).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check slug existence", zap.String("slug", slug), zap.Error(err))
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

// UpdateLink writes the mutable columns of link, zero values included.
func (s *Store) UpdateLink(ctx context.Context, link *domain.Link) error {
	result := s.db.WithContext(ctx).Model(link).
		Select("slug", "url", "updated_at", "expires_at", "disabled", "reported").
		Updates(link)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return repository.ErrSlugExists
		}
		s.log.Error("failed to update link", zap.Int64("id", link.ID), zap.Error(result.Error))
		return fmt.Errorf("failed to update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}
	return nil
}

// DeleteLink removes a link and its clicks.
func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// remote libsql connections do not enforce ON DELETE CASCADE
		if err := tx.Where("link_id = ?", id).Delete(&domain.Click{}).Error; err != nil {
			return fmt.Errorf("failed to delete clicks: %w", err)
		}
		result := tx.Delete(&domain.Link{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete link: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrLinkNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			s.log.Error("failed to delete link", zap.Int64("id", id), zap.Error(err))
		}
		return err
	}

	s.log.Info("deleted link", zap.Int64("id", id))
	return nil
}

// MarkReported flags the link for review.
func (s *Store) MarkReported(ctx context.Context, slug string, now clock.Stamp) error {
	result := s.db.WithContext(ctx).Model(&domain.Link{}).
		Where("slug = ?", slug).
		Updates(map[string]any{"reported": true, "updated_at": now})
	if result.Error != nil {
		s.log.Error("failed to mark link reported", zap.String("slug", slug), zap.Error(result.Error))
		return fmt.Errorf("failed to mark link reported: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}
	return nil
}

// ListLinks returns every link with its click count, newest first.
func (s *Store) ListLinks(ctx context.Context) ([]domain.LinkWithClicks, error) {
	var links []domain.LinkWithClicks
	err := s.db.WithContext(ctx).Model(&domain.Link{}).
		Select("links.*, COUNT(clicks.id) AS click_count").
		Joins("LEFT JOIN clicks ON clicks.link_id = links.id").
		Group("links.id").
		Order("links.created_at DESC, links.id DESC").
		Scan(&links).Error
	if err != nil {
		s.log.Error("failed to list links", zap.Error(err))
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// ResolveAndRecordClick checks the link's state and records the click in a
// single transaction, so a link disabled or expired concurrently is never
// counted.
func (s *Store) ResolveAndRecordClick(ctx context.Context, slug string, now clock.Stamp, visit domain.Visit) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(rowLock("SHARE")).Where("slug = ?", slug).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrLinkNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get link: %w", err)
		}

		if state := link.StateAt(now); state != domain.LinkLive {
			s.log.Debug("link not resolvable", zap.String("slug", slug), zap.Stringer("state", state))
			return repository.ErrLinkNotFound
		}

		if err := tx.Create(visit.ClickAt(link.ID, now)).Error; err != nil {
			return fmt.Errorf("failed to create click: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			s.log.Error("failed to record click", zap.String("slug", slug), zap.Error(err))
		}
		return nil, err
	}

	return &link, nil
}

// CountClicks returns the total number of clicks on a link.
func (s *Store) CountClicks(ctx context.Context, linkID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Click{}).Where("link_id = ?", linkID).Count(&count).Error
	if err != nil {
		s.log.Error("failed to count clicks", zap.Int64("link_id", linkID), zap.Error(err))
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

// RecentClicks returns the newest clicks on a link.
func (s *Store) RecentClicks(ctx context.Context, linkID int64, limit int) ([]domain.Click, error) {
	clicks := []domain.Click{}
	err := s.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("clicked_at DESC, id DESC").
		Limit(limit).
		Find(&clicks).Error
	if err != nil {
		s.log.Error("failed to get recent clicks", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get recent clicks: %w", err)
	}
	return clicks, nil
}

// TopReferrers groups clicks by referrer, skipping empty ones.
func (s *Store) TopReferrers(ctx context.Context, linkID int64, limit int) ([]domain.CountByKey, error) {
	return s.groupClicks(ctx, linkID, "referrer", limit)
}

// TopCountries groups clicks by country, skipping empty ones.
func (s *Store) TopCountries(ctx context.Context, linkID int64, limit int) ([]domain.CountByKey, error) {
	return s.groupClicks(ctx, linkID, "country", limit)
}

// UserAgentCounts groups every click by its raw user agent.
func (s *Store) UserAgentCounts(ctx context.Context, linkID int64) ([]domain.CountByKey, error) {
	return s.groupClicks(ctx, linkID, "user_agent", 0)
}

// groupClicks counts a link's clicks per distinct non-empty value of column.
// column is always a constant from this file.
func (s *Store) groupClicks(ctx context.Context, linkID int64, column string, limit int) ([]domain.CountByKey, error) {
	rows := []domain.CountByKey{}
	q := s.db.WithContext(ctx).Model(&domain.Click{}).
		Select(column+" AS name, COUNT(*) AS total").
		Where("link_id = ?", linkID).
		Where(column + " IS NOT NULL AND " + column + " <> ''").
		Group(column).
		Order("total DESC, name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(&rows).Error; err != nil {
		s.log.Error("failed to group clicks", zap.Int64("link_id", linkID), zap.String("column", column), zap.Error(err))
		return nil, fmt.Errorf("failed to group clicks by %s: %w", column, err)
	}
	return rows, nil
}

// PurgeExpired deletes links whose expiry is before the given instant.
func (s *Store) PurgeExpired(ctx context.Context, before clock.Stamp) (int64, error) {
	var removed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&domain.Link{}).Select("id").Where("expires_at IS NOT NULL AND expires_at < ?", before)
		if err := tx.Where("link_id IN (?)", expired).Delete(&domain.Click{}).Error; err != nil {
			return fmt.Errorf("failed to delete clicks: %w", err)
		}

		result := tx.Where("expires_at IS NOT NULL AND expires_at < ?", before).Delete(&domain.Link{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete links: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		s.log.Error("failed to purge expired links", zap.Error(err))
		return 0, err
	}

	if removed > 0 {
		s.log.Info("purged expired links", zap.Int64("count", removed))
	}
	return removed, nil
}
