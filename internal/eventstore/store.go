// Package eventstore persists and queries immutable click events.
package eventstore

import (
	"context"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// Filter selects events for a query. Zero-value fields are ignored.
type Filter struct {
	URLID       string
	URLIDs      []string
	From        time.Time
	To          time.Time
	ExcludeBots bool

	// NewestFirst reverses the default oldest-first ordering. Facet
	// aggregation relies on oldest-first so tie-breaking follows
	// first-seen order; exports want newest-first.
	NewestFirst bool

	Limit int
}

// Store is the durable append-only click event store.
type Store interface {
	// Insert persists a fully enriched event. Events are never updated.
	Insert(ctx context.Context, event *clickstream.ClickEvent) error

	// Exists reports whether any prior event was recorded for the
	// (url, normalized IP) pair.
	Exists(ctx context.Context, urlID, ip string) (bool, error)

	// Query returns events matching the filter, ordered by creation time.
	Query(ctx context.Context, filter Filter) ([]*clickstream.ClickEvent, error)

	// CountOlderThan counts events created strictly before the cutoff.
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOlderThan removes at most limit events created strictly
	// before the cutoff and returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
