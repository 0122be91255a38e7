package memory

import (
	"context"
	"sort"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
)

// --- Stats Methods ---

func (s *MemStorage) InsertActivity(_ context.Context, a *domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.activity = append(s.activity, *a)
	return nil
}

func (s *MemStorage) InsertMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *MemStorage) InsertToolEvent(_ context.Context, t *domain.ToolEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.tools = append(s.tools, *t)
	return nil
}

func (s *MemStorage) UpsertSession(_ context.Context, update domain.SessionUpdate, now clock.Stamp) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged domain.Session
	if existing, ok := s.sessions[update.SessionID]; ok {
		merged = domain.MergeSession(*existing, update)
	} else {
		merged = domain.NewSession(update, now)
		merged.ID = s.id()
	}
	s.sessions[update.SessionID] = &merged

	out := merged
	return &out, nil
}

func (s *MemStorage) ActivityTotals(_ context.Context, f domain.TimeFilter) (domain.ActivityTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.ActivityTotals
	var last *domain.Activity
	for i := range s.activity {
		a := s.activity[i]
		if last == nil || a.Timestamp > last.Timestamp || (a.Timestamp == last.Timestamp && a.ID > last.ID) {
			last = &s.activity[i]
		}
		if !f.Includes(a.Timestamp) {
			continue
		}
		totals.Total++
		switch a.Status {
		case domain.StatusActive:
			totals.Active++
		case domain.StatusIdle:
			totals.Idle++
		}
	}
	if last != nil {
		out := *last
		totals.Last = &out
	}
	return totals, nil
}

func (s *MemStorage) MessageTotals(_ context.Context, f domain.TimeFilter) (domain.MessageTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.MessageTotals
	for _, m := range s.messages {
		if !f.Includes(m.Timestamp) {
			continue
		}
		totals.Total += m.Count
		if m.Direction == nil {
			continue
		}
		switch *m.Direction {
		case domain.Inbound:
			totals.Inbound += m.Count
		case domain.Outbound:
			totals.Outbound += m.Count
		}
	}
	return totals, nil
}

func (s *MemStorage) ToolUsage(_ context.Context, f domain.TimeFilter) ([]domain.ToolUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, t := range s.tools {
		if f.Includes(t.Timestamp) {
			counts[t.ToolName] += t.Count
		}
	}

	rows := domain.SortCounts(counts, 0)
	usage := make([]domain.ToolUsage, 0, len(rows))
	for _, r := range rows {
		usage = append(usage, domain.ToolUsage{ToolName: r.Key, Total: r.Count})
	}
	return usage, nil
}

func (s *MemStorage) SessionTotals(_ context.Context, f domain.TimeFilter) (domain.SessionTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.SessionTotals
	for _, sess := range s.sessions {
		if f.Includes(sess.StartedAt) {
			totals.Total++
			totals.SubAgentsSpawned += sess.SubAgentsSpawned
		}
	}
	return totals, nil
}

func (s *MemStorage) ListActivity(_ context.Context, f domain.TimeFilter) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []domain.Activity
	for _, a := range s.activity {
		if f.Includes(a.Timestamp) {
			rows = append(rows, a)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}

func (s *MemStorage) ListMessages(_ context.Context, f domain.TimeFilter) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []domain.Message
	for _, m := range s.messages {
		if f.Includes(m.Timestamp) {
			rows = append(rows, m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}
