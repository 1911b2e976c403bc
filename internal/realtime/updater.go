package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/serroba/clickstream-go/internal/analytics"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/ingest"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// Updater reacts to recorded clicks by recomputing the affected URL's
// pulse and the global pulse, broadcasting both and caching them as the
// current snapshots. All of it is best effort: a failed recompute or
// broadcast is logged and the click event is acked anyway, since the next
// click will carry fresher numbers.
type Updater struct {
	engine      *analytics.Engine
	urls        urldir.Directory
	broadcaster *Broadcaster
	cache       SnapshotCache
	logger      *zap.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(
	engine *analytics.Engine,
	urls urldir.Directory,
	broadcaster *Broadcaster,
	cache SnapshotCache,
	logger *zap.Logger,
) *Updater {
	return &Updater{
		engine:      engine,
		urls:        urls,
		broadcaster: broadcaster,
		cache:       cache,
		logger:      logger,
	}
}

// HandleClickRecorded is the click.recorded consumer handler.
func (u *Updater) HandleClickRecorded(ctx context.Context, event *ingest.ClickRecorded) error {
	u.publishURLPulse(ctx, event)
	u.publishGlobalPulse(ctx)

	return nil
}

func (u *Updater) publishURLPulse(ctx context.Context, event *ingest.ClickRecorded) {
	pulse, err := u.engine.URLPulse(ctx, event.URLID)
	if err != nil {
		u.logger.Warn("failed to compute url pulse",
			zap.String("urlId", event.URLID),
			zap.Error(err),
		)

		return
	}

	topic := TopicForURL(event.ShortCode)

	u.broadcaster.Publish(topic, MessageTypeURLPulse, pulse)
	u.storeSnapshot(ctx, topic, pulse)
}

func (u *Updater) publishGlobalPulse(ctx context.Context) {
	pulse, err := u.engine.GlobalPulse(ctx, analytics.DefaultRealtimeWindow)
	if err != nil {
		u.logger.Warn("failed to compute global pulse", zap.Error(err))

		return
	}

	u.broadcaster.Publish(TopicGlobal, MessageTypeGlobalPulse, pulse)
	u.storeSnapshot(ctx, TopicGlobal, pulse)
}

func (u *Updater) storeSnapshot(ctx context.Context, topic string, pulse any) {
	payload, err := json.Marshal(pulse)
	if err != nil {
		u.logger.Warn("failed to marshal snapshot", zap.String("topic", topic), zap.Error(err))

		return
	}

	if err := u.cache.Set(ctx, topic, payload); err != nil {
		u.logger.Warn("failed to cache snapshot", zap.String("topic", topic), zap.Error(err))
	}
}

// Snapshot returns the current payload for a topic, serving the cached
// copy when present and computing a fresh one otherwise.
func (u *Updater) Snapshot(ctx context.Context, topic string) (json.RawMessage, error) {
	if payload, err := u.cache.Get(ctx, topic); err == nil {
		return payload, nil
	} else if !errors.Is(err, clickstream.ErrNotFound) {
		u.logger.Warn("snapshot cache read failed", zap.String("topic", topic), zap.Error(err))
	}

	pulse, err := u.computePulse(ctx, topic)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(pulse)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := u.cache.Set(ctx, topic, payload); err != nil {
		u.logger.Warn("failed to cache snapshot", zap.String("topic", topic), zap.Error(err))
	}

	return payload, nil
}

func (u *Updater) computePulse(ctx context.Context, topic string) (any, error) {
	if topic == TopicGlobal {
		return u.engine.GlobalPulse(ctx, analytics.DefaultRealtimeWindow)
	}

	code, ok := strings.CutPrefix(topic, "url:")
	if !ok {
		return nil, fmt.Errorf("%w: unknown topic %q", clickstream.ErrValidation, topic)
	}

	record, err := u.urls.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return u.engine.URLPulse(ctx, record.ID)
}
