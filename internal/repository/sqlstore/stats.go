package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
)

// InsertActivity appends an activity pulse.
func (s *Store) InsertActivity(ctx context.Context, a *domain.Activity) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		s.log.Error("failed to insert activity", zap.String("status", string(a.Status)), zap.Error(err))
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// InsertMessage appends a message batch.
func (s *Store) InsertMessage(ctx context.Context, m *domain.Message) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		s.log.Error("failed to insert message", zap.Int64("count", m.Count), zap.Error(err))
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// InsertToolEvent appends a tool usage event.
func (s *Store) InsertToolEvent(ctx context.Context, t *domain.ToolEvent) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		s.log.Error("failed to insert tool event", zap.String("tool_name", t.ToolName), zap.Error(err))
		return fmt.Errorf("failed to insert tool event: %w", err)
	}
	return nil
}

// UpsertSession merges update into the stored session. If a concurrent
// writer creates the row between our read and insert, the unique index
// rejects our insert and the merge is retried once against the new row.
func (s *Store) UpsertSession(ctx context.Context, update domain.SessionUpdate, now clock.Stamp) (*domain.Session, error) {
	session, err := s.upsertSession(ctx, update, now)
	if err != nil && isUniqueViolation(err) {
		s.log.Debug("session created concurrently, retrying merge", zap.String("session_id", update.SessionID))
		session, err = s.upsertSession(ctx, update, now)
	}
	if err != nil {
		s.log.Error("failed to upsert session", zap.String("session_id", update.SessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}
	return session, nil
}

func (s *Store) upsertSession(ctx context.Context, update domain.SessionUpdate, now clock.Stamp) (*domain.Session, error) {
	var session domain.Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []domain.Session
		err := tx.Clauses(rowLock("UPDATE")).
			Where("session_id = ?", update.SessionID).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			session = domain.NewSession(update, now)
			return tx.Create(&session).Error
		}

		session = domain.MergeSession(existing[0], update)
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActivityTotals counts active and idle pulses within f.
func (s *Store) ActivityTotals(ctx context.Context, f domain.TimeFilter) (domain.ActivityTotals, error) {
	var totals domain.ActivityTotals

	var row struct {
		Total  int64
		Active int64
		Idle   int64
	}
	q := s.db.WithContext(ctx).Model(&domain.Activity{}).Select(
		"COUNT(*) AS total, " +
			"CAST(COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS BIGINT) AS active, " +
			"CAST(COALESCE(SUM(CASE WHEN status = 'idle' THEN 1 ELSE 0 END), 0) AS BIGINT) AS idle")
	if err := since(q, "timestamp", f).Scan(&row).Error; err != nil {
		s.log.Error("failed to count activity", zap.Error(err))
		return totals, fmt.Errorf("failed to count activity: %w", err)
	}
	totals.Total, totals.Active, totals.Idle = row.Total, row.Active, row.Idle

	var last []domain.Activity
	err := s.db.WithContext(ctx).Clauses(orderBy("timestamp", true)).Limit(1).Find(&last).Error
	if err != nil {
		s.log.Error("failed to get last activity", zap.Error(err))
		return totals, fmt.Errorf("failed to get last activity: %w", err)
	}
	if len(last) > 0 {
		totals.Last = &last[0]
	}

	return totals, nil
}

// MessageTotals sums message counts within f, overall and per direction.
func (s *Store) MessageTotals(ctx context.Context, f domain.TimeFilter) (domain.MessageTotals, error) {
	var totals domain.MessageTotals
	q := s.db.WithContext(ctx).Model(&domain.Message{}).Select(
		"CAST(COALESCE(SUM(count), 0) AS BIGINT) AS total, " +
			"CAST(COALESCE(SUM(CASE WHEN direction = 'inbound' THEN count ELSE 0 END), 0) AS BIGINT) AS inbound, " +
			"CAST(COALESCE(SUM(CASE WHEN direction = 'outbound' THEN count ELSE 0 END), 0) AS BIGINT) AS outbound")
	if err := since(q, "timestamp", f).Scan(&totals).Error; err != nil {
		s.log.Error("failed to sum messages", zap.Error(err))
		return totals, fmt.Errorf("failed to sum messages: %w", err)
	}
	return totals, nil
}

// ToolUsage sums invocations per tool within f.
func (s *Store) ToolUsage(ctx context.Context, f domain.TimeFilter) ([]domain.ToolUsage, error) {
	usage := []domain.ToolUsage{}
	q := s.db.WithContext(ctx).Model(&domain.ToolEvent{}).
		Select("tool_name, CAST(SUM(count) AS BIGINT) AS total")
	err := since(q, "timestamp", f).
		Group("tool_name").
		Order("total DESC, tool_name ASC").
		Scan(&usage).Error
	if err != nil {
		s.log.Error("failed to sum tool usage", zap.Error(err))
		return nil, fmt.Errorf("failed to sum tool usage: %w", err)
	}
	return usage, nil
}

// SessionTotals counts sessions started within f.
func (s *Store) SessionTotals(ctx context.Context, f domain.TimeFilter) (domain.SessionTotals, error) {
	var totals domain.SessionTotals
	q := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select("COUNT(*) AS total, CAST(COALESCE(SUM(sub_agents_spawned), 0) AS BIGINT) AS sub_agents_spawned")
	if err := since(q, "started_at", f).Scan(&totals).Error; err != nil {
		s.log.Error("failed to count sessions", zap.Error(err))
		return totals, fmt.Errorf("failed to count sessions: %w", err)
	}
	return totals, nil
}

// ListActivity returns pulses within f, oldest first.
func (s *Store) ListActivity(ctx context.Context, f domain.TimeFilter) ([]domain.Activity, error) {
	var rows []domain.Activity
	err := since(s.db.WithContext(ctx), "timestamp", f).
		Clauses(orderBy("timestamp", false)).
		Find(&rows).Error
	if err != nil {
		s.log.Error("failed to list activity", zap.Error(err))
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return rows, nil
}

// ListMessages returns message batches within f, oldest first.
func (s *Store) ListMessages(ctx context.Context, f domain.TimeFilter) ([]domain.Message, error) {
	var rows []domain.Message
	err := since(s.db.WithContext(ctx), "timestamp", f).
		Clauses(orderBy("timestamp", false)).
		Find(&rows).Error
	if err != nil {
		s.log.Error("failed to list messages", zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return rows, nil
}
