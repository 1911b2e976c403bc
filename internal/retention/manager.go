// Package retention removes click events past the configured retention
// horizon. Purging is a background maintenance sweep and never sits on
// the request-serving path.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/clickstream-go/internal/eventstore"
	"go.uber.org/zap"
)

// Defaults for the sweep configuration.
const (
	DefaultBatchSize  = 1000
	DefaultBatchPause = 100 * time.Millisecond
)

// Result reports what one purge pass did. WouldDelete is populated on
// dry runs, Deleted otherwise.
type Result struct {
	Cutoff      time.Time `json:"cutoff"`
	Deleted     int64     `json:"deleted"`
	WouldDelete int64     `json:"wouldDelete"`
	Batches     int       `json:"batches"`
	DryRun      bool      `json:"dryRun"`
}

// Manager deletes events older than a retention horizon in bounded
// batches.
type Manager struct {
	events     eventstore.Store
	batchSize  int
	batchPause time.Duration
	logger     *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a retention manager. Non-positive batch settings
// fall back to the defaults.
func NewManager(events eventstore.Store, batchSize int, batchPause time.Duration, logger *zap.Logger) *Manager {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if batchPause <= 0 {
		batchPause = DefaultBatchPause
	}

	return &Manager{
		events:     events,
		batchSize:  batchSize,
		batchPause: batchPause,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// PurgeOlderThan deletes events older than the retention period. With
// dryRun set it only counts what a real pass would delete. Deletion runs
// in batches of the configured size with a pause between batches so a
// large backlog never saturates the store.
func (m *Manager) PurgeOlderThan(ctx context.Context, retention time.Duration, dryRun bool) (*Result, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention period must be positive, got %s", retention)
	}

	cutoff := time.Now().Add(-retention)
	result := &Result{Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		count, err := m.events.CountOlderThan(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("counting expired events: %w", err)
		}

		result.WouldDelete = count

		return result, nil
	}

	for {
		deleted, err := m.events.DeleteOlderThan(ctx, cutoff, m.batchSize)
		if err != nil {
			return nil, fmt.Errorf("deleting expired events: %w", err)
		}

		if deleted == 0 {
			break
		}

		result.Deleted += deleted
		result.Batches++

		m.logger.Debug("purged event batch",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)

		if deleted < int64(m.batchSize) {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(m.batchPause):
		}
	}

	if result.Deleted > 0 {
		m.logger.Info("retention purge complete",
			zap.Int64("deleted", result.Deleted),
			zap.Int("batches", result.Batches),
			zap.Time("cutoff", cutoff),
		)
	}

	return result, nil
}

// Start launches a background sweeper that purges on the given interval
// until Shutdown is called.
func (m *Manager) Start(ctx context.Context, interval, retention time.Duration) {
	ctx, m.cancel = context.WithCancel(ctx)

	go m.run(ctx, interval, retention)
}

func (m *Manager) run(ctx context.Context, interval, retention time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.PurgeOlderThan(ctx, retention, false); err != nil && ctx.Err() == nil {
				m.logger.Error("retention purge failed", zap.Error(err))
			}
		}
	}
}

// Shutdown stops the background sweeper and waits for the in-flight pass
// to finish.
func (m *Manager) Shutdown() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	<-m.done

	return nil
}
