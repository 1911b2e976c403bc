// Package urldir is the URL resource collaborator: lookup of active short
// URLs and atomic mutation of their running click counters.
package urldir

import (
	"context"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// URLRecord is the URL resource as the pipeline sees it.
type URLRecord struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	OwnerID     string     `json:"ownerId,omitempty"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	Stats clickstream.URLStats `json:"stats"`
}

// Expired reports whether the record's expiry has passed at the given
// instant.
func (r *URLRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Directory looks up URL records and mutates their counters. Lookups
// return clickstream.ErrNotFound for missing, inactive, or expired
// records, which the pipeline treats identically.
type Directory interface {
	FindActiveByID(ctx context.Context, id string) (*URLRecord, error)
	FindActiveByCode(ctx context.Context, code string) (*URLRecord, error)

	// IncrementCounters atomically bumps the total counter, the unique
	// counter iff unique, and the last-clicked timestamp, returning the
	// post-increment counters. Concurrent increments never lose updates.
	IncrementCounters(ctx context.Context, id string, unique bool, at time.Time) (clickstream.URLStats, error)

	Create(ctx context.Context, originalURL, ownerID string, expiresAt *time.Time) (*URLRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*URLRecord, error)
}

// OwnerStatsSink receives per-owner click totals. Delivery is best-effort;
// the pipeline logs and ignores failures.
type OwnerStatsSink interface {
	AddClicks(ctx context.Context, ownerID string, n int64) error
}
