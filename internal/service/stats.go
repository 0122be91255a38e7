package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

// ActivityInput is an activity pulse as posted by a client.
type ActivityInput struct {
	Status    string       `json:"status"`
	Details   *string      `json:"details,omitempty"`
	Timestamp *clock.Stamp `json:"timestamp,omitempty"`
}

// MessageInput is a message batch as posted by a client. Count defaults to 1.
type MessageInput struct {
	Count     *int64       `json:"count,omitempty"`
	SessionID *string      `json:"session_id,omitempty"`
	Direction string       `json:"direction,omitempty"`
	Timestamp *clock.Stamp `json:"timestamp,omitempty"`
}

// ToolInput is a tool usage event as posted by a client. Count defaults to 1.
type ToolInput struct {
	ToolName  string       `json:"tool_name"`
	Count     *int64       `json:"count,omitempty"`
	Timestamp *clock.Stamp `json:"timestamp,omitempty"`
}

// StatsService validates and stores dashboard events.
type StatsService struct {
	store repository.StatsStorage
	clock clock.Clock
	log   *zap.Logger
}

func NewStatsService(store repository.StatsStorage, c clock.Clock, log *zap.Logger) *StatsService {
	return &StatsService{store: store, clock: c, log: log}
}

func (s *StatsService) stamp(ts *clock.Stamp) clock.Stamp {
	if ts != nil {
		return *ts
	}
	return clock.NowStamp(s.clock)
}

func countOrDefault(field string, n *int64) (int64, error) {
	if n == nil {
		return 1, nil
	}
	if *n < 1 {
		return 0, invalid(field, "must be at least 1")
	}
	return *n, nil
}

// RecordActivity stores an activity pulse and returns its id.
func (s *StatsService) RecordActivity(ctx context.Context, in ActivityInput) (int64, error) {
	status := domain.ActivityStatus(in.Status)
	if !status.Valid() {
		return 0, invalid("status", `Invalid status. Must be "active" or "idle".`)
	}

	a := &domain.Activity{
		Timestamp: s.stamp(in.Timestamp),
		Status:    status,
		Details:   in.Details,
	}
	if err := s.store.InsertActivity(ctx, a); err != nil {
		return 0, fmt.Errorf("failed to record activity: %w", err)
	}
	return a.ID, nil
}

// RecordMessage stores a message batch and returns its id.
func (s *StatsService) RecordMessage(ctx context.Context, in MessageInput) (int64, error) {
	count, err := countOrDefault("count", in.Count)
	if err != nil {
		return 0, err
	}
	direction, err := domain.ParseDirection(in.Direction)
	if err != nil {
		return 0, invalid("direction", `Invalid direction. Must be "inbound" or "outbound".`)
	}

	m := &domain.Message{
		Timestamp: s.stamp(in.Timestamp),
		Count:     count,
		SessionID: in.SessionID,
		Direction: direction,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return 0, fmt.Errorf("failed to record message: %w", err)
	}
	return m.ID, nil
}

// RecordTool stores a tool usage event and returns its id.
func (s *StatsService) RecordTool(ctx context.Context, in ToolInput) (int64, error) {
	name := strings.TrimSpace(in.ToolName)
	if name == "" {
		return 0, invalid("tool_name", "tool_name is required.")
	}
	count, err := countOrDefault("count", in.Count)
	if err != nil {
		return 0, err
	}

	t := &domain.ToolEvent{
		Timestamp: s.stamp(in.Timestamp),
		ToolName:  name,
		Count:     count,
	}
	if err := s.store.InsertToolEvent(ctx, t); err != nil {
		return 0, fmt.Errorf("failed to record tool event: %w", err)
	}
	return t.ID, nil
}

// RecordSession merges update into the named session and returns the row.
func (s *StatsService) RecordSession(ctx context.Context, update domain.SessionUpdate) (*domain.Session, error) {
	update.SessionID = strings.TrimSpace(update.SessionID)
	if update.SessionID == "" {
		return nil, invalid("session_id", "session_id is required.")
	}
	for field, v := range map[string]*int64{
		"messages_count":     update.MessagesCount,
		"tools_count":        update.ToolsCount,
		"sub_agents_spawned": update.SubAgentsSpawned,
	} {
		if v != nil && *v < 0 {
			return nil, invalid(field, "must not be negative")
		}
	}

	session, err := s.store.UpsertSession(ctx, update, clock.NowStamp(s.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return session, nil
}
