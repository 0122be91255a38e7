package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
)

// Aggregator computes dashboard views over a time range.
type Aggregator struct {
	store repository.StatsStorage
	clock clock.Clock
	log   *zap.Logger
}

func NewAggregator(store repository.StatsStorage, c clock.Clock, log *zap.Logger) *Aggregator {
	return &Aggregator{store: store, clock: c, log: log}
}

func (a *Aggregator) filter(r clock.Range) domain.TimeFilter {
	return domain.TimeFilter{Since: r.Since(a.clock.Now())}
}

// Summarize returns headline counts for r. The last activity is reported
// regardless of r.
func (a *Aggregator) Summarize(ctx context.Context, r clock.Range) (*domain.Summary, error) {
	f := a.filter(r)
	out := &domain.Summary{}

	var err error
	if out.Activity, err = a.store.ActivityTotals(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to summarize activity: %w", err)
	}
	if out.Messages, err = a.store.MessageTotals(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to summarize messages: %w", err)
	}
	if out.Tools, err = a.store.ToolUsage(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to summarize tools: %w", err)
	}
	if out.Sessions, err = a.store.SessionTotals(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to summarize sessions: %w", err)
	}
	if out.Tools == nil {
		out.Tools = []domain.ToolUsage{}
	}

	a.log.Debug("summary computed", zap.String("range", string(r)), zap.Int64("activity", out.Activity.Total))
	return out, nil
}

// Timeline buckets activity and messages in r by hour (today) or by day.
// Empty periods are omitted; periods are in ascending order.
func (a *Aggregator) Timeline(ctx context.Context, r clock.Range) (*domain.Timeline, error) {
	f := a.filter(r)

	activity, err := a.store.ListActivity(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity timeline: %w", err)
	}
	messages, err := a.store.ListMessages(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load message timeline: %w", err)
	}

	return &domain.Timeline{
		Activity: bucketActivity(r, activity),
		Messages: bucketMessages(r, messages),
	}, nil
}

func bucketActivity(r clock.Range, rows []domain.Activity) []domain.ActivityPoint {
	points := []domain.ActivityPoint{}
	index := make(map[string]int)

	for _, row := range rows {
		key := r.PeriodKey(row.Timestamp.Time())
		i, ok := index[key]
		if !ok {
			i = len(points)
			index[key] = i
			points = append(points, domain.ActivityPoint{Period: key})
		}
		switch row.Status {
		case domain.StatusActive:
			points[i].Active++
		case domain.StatusIdle:
			points[i].Idle++
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points
}

func bucketMessages(r clock.Range, rows []domain.Message) []domain.MessagePoint {
	points := []domain.MessagePoint{}
	index := make(map[string]int)

	for _, row := range rows {
		key := r.PeriodKey(row.Timestamp.Time())
		i, ok := index[key]
		if !ok {
			i = len(points)
			index[key] = i
			points = append(points, domain.MessagePoint{Period: key})
		}
		points[i].Total += row.Count
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points
}
