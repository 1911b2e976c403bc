package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// MemoryStore is an in-memory Store used in tests and single-process
// deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*clickstream.ClickEvent
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, event *clickstream.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	m.events = append(m.events, &copied)

	return nil
}

func (m *MemoryStore) Exists(_ context.Context, urlID, ip string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, event := range m.events {
		if event.URLID == urlID && event.IP == ip {
			return true, nil
		}
	}

	return false, nil
}

func (m *MemoryStore) Query(_ context.Context, filter Filter) ([]*clickstream.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*clickstream.ClickEvent, 0)

	for _, event := range m.events {
		if !matches(event, filter) {
			continue
		}

		copied := *event
		matched = append(matched, &copied)
	}

	slices.SortStableFunc(matched, func(a, b *clickstream.ClickEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if filter.NewestFirst {
		slices.Reverse(matched)
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func matches(event *clickstream.ClickEvent, filter Filter) bool {
	if filter.URLID != "" && event.URLID != filter.URLID {
		return false
	}

	if len(filter.URLIDs) > 0 && !slices.Contains(filter.URLIDs, event.URLID) {
		return false
	}

	if !filter.From.IsZero() && event.CreatedAt.Before(filter.From) {
		return false
	}

	if !filter.To.IsZero() && !event.CreatedAt.Before(filter.To) {
		return false
	}

	if filter.ExcludeBots && event.IsBot {
		return false
	}

	return true
}

func (m *MemoryStore) CountOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64

	for _, event := range m.events {
		if event.CreatedAt.Before(cutoff) {
			count++
		}
	}

	return count, nil
}

func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64

	kept := m.events[:0]

	for _, event := range m.events {
		if event.CreatedAt.Before(cutoff) && (limit <= 0 || deleted < int64(limit)) {
			deleted++
			continue
		}

		kept = append(kept, event)
	}

	m.events = kept

	return deleted, nil
}
