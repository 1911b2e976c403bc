package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/ingest"
	"github.com/serroba/clickstream-go/internal/messaging"
	"github.com/serroba/clickstream-go/internal/urldir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGeo struct {
	location *clickstream.Location
	err      error
}

func (s *stubGeo) Resolve(_ context.Context, ip string) (*clickstream.Location, error) {
	if s.err != nil {
		return nil, s.err
	}

	if enrich.IsPrivateIP(ip) {
		return enrich.LocalLocation(), nil
	}

	return s.location, nil
}

type failingStore struct {
	eventstore.Store
}

func (f *failingStore) Insert(_ context.Context, _ *clickstream.ClickEvent) error {
	return errors.New("disk full")
}

type recordingSink struct {
	mu     sync.Mutex
	clicks map[string]int64
	err    error
}

func (r *recordingSink) AddClicks(_ context.Context, ownerID string, n int64) error {
	if r.err != nil {
		return r.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clicks == nil {
		r.clicks = make(map[string]int64)
	}

	r.clicks[ownerID] += n

	return nil
}

func noopPublish[T any]() messaging.Publish[T] {
	return func(_ context.Context, _ *T) error { return nil }
}

type fixture struct {
	dir      *urldir.MemoryDirectory
	store    *eventstore.MemoryStore
	pipeline *ingest.Pipeline
	url      *urldir.URLRecord
}

func newFixture(t *testing.T, geo enrich.GeoResolver) *fixture {
	t.Helper()

	counter := 0
	dir := urldir.NewMemoryDirectory(func() string {
		counter++

		return fmt.Sprintf("code%d", counter)
	})

	url, err := dir.Create(context.Background(), "https://example.com/landing", "owner-1", nil)
	require.NoError(t, err)

	store := eventstore.NewMemoryStore()

	pipeline := ingest.NewPipeline(dir, store, geo, nil, noopPublish[ingest.ClickRecorded](), zap.NewNop())

	return &fixture{dir: dir, store: store, pipeline: pipeline, url: url}
}

func submission(urlID, ip, ua string) ingest.Submission {
	return ingest.Submission{URLID: urlID, RemoteIP: ip, UserAgent: ua}
}

func TestRecordClick(t *testing.T) {
	ctx := context.Background()

	t.Run("desktop chrome click", func(t *testing.T) {
		f := newFixture(t, &stubGeo{location: &clickstream.Location{CountryCode: "US", Country: "United States"}})

		result, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "Mozilla/5.0 (Windows NT 10.0) Chrome/115.0"))

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/landing", result.RedirectURL)

		event := result.Event
		assert.Equal(t, "203.0.113.5", event.IP)
		assert.Equal(t, clickstream.DeviceDesktop, event.Device.Type)
		assert.Equal(t, "Chrome", event.Device.Browser)
		assert.Equal(t, "115.0", event.Device.BrowserVersion)
		assert.False(t, event.IsBot)
		assert.True(t, event.IsUnique)
		assert.Nil(t, event.Campaign)

		require.NotNil(t, event.Location)
		assert.Equal(t, "US", event.Location.CountryCode)

		assert.Equal(t, int64(1), result.Stats.TotalClicks)
		assert.Equal(t, int64(1), result.Stats.UniqueClicks)
	})

	t.Run("bot click is flagged regardless of device fields", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		result, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "Mozilla/5.0 (compatible; Googlebot/2.1)"))

		require.NoError(t, err)
		assert.True(t, result.Event.IsBot)
		assert.Equal(t, clickstream.DeviceBot, result.Event.Device.Type)
	})

	t.Run("private ip resolves to local placeholder", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		result, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "192.168.1.1", "Mozilla/5.0 Chrome/115.0"))

		require.NoError(t, err)
		require.NotNil(t, result.Event.Location)
		assert.Equal(t, "Local", result.Event.Location.Country)
		assert.Equal(t, "Private", result.Event.Location.City)
	})

	t.Run("only the first click per ip is unique", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		first, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))
		require.NoError(t, err)
		assert.True(t, first.Event.IsUnique)

		second, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))
		require.NoError(t, err)
		assert.False(t, second.Event.IsUnique)

		assert.Equal(t, int64(2), second.Stats.TotalClicks)
		assert.Equal(t, int64(1), second.Stats.UniqueClicks)
	})

	t.Run("campaign attribution from referrer", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		sub := submission(f.url.ID, "203.0.113.5", "ua")
		sub.Referrer = "https://social.example.com/?utm_source=social&utm_campaign=launch"

		result, err := f.pipeline.RecordClick(ctx, sub)

		require.NoError(t, err)
		require.NotNil(t, result.Event.Campaign)
		assert.Equal(t, "social", result.Event.Campaign.Source)
		assert.Equal(t, "launch", result.Event.Campaign.Campaign)
	})

	t.Run("geo failure leaves location absent", func(t *testing.T) {
		f := newFixture(t, nil)
		f.pipeline = ingest.NewPipeline(f.dir, f.store, &stubGeo{err: errors.New("geo down")}, nil, noopPublish[ingest.ClickRecorded](), zap.NewNop())

		result, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))

		require.NoError(t, err)
		assert.Nil(t, result.Event.Location)
	})

	t.Run("unknown url is not found before any write", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		_, err := f.pipeline.RecordClick(ctx, submission("missing", "203.0.113.5", "ua"))

		assert.ErrorIs(t, err, clickstream.ErrNotFound)

		events, _ := f.store.Query(ctx, eventstore.Filter{})
		assert.Empty(t, events)
	})

	t.Run("inactive url is not found", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})
		f.dir.Deactivate(f.url.ID)

		_, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))

		assert.ErrorIs(t, err, clickstream.ErrNotFound)
	})

	t.Run("oversized user-agent is rejected", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})

		sub := submission(f.url.ID, "203.0.113.5", string(make([]byte, clickstream.MaxUserAgentLength+1)))

		_, err := f.pipeline.RecordClick(ctx, sub)

		assert.ErrorIs(t, err, clickstream.ErrValidation)
	})

	t.Run("failed event write leaves counters untouched", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})
		f.pipeline = ingest.NewPipeline(f.dir, &failingStore{Store: f.store}, &stubGeo{}, nil, noopPublish[ingest.ClickRecorded](), zap.NewNop())

		_, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))

		assert.ErrorIs(t, err, clickstream.ErrStorage)

		record, lookupErr := f.dir.FindActiveByID(ctx, f.url.ID)
		require.NoError(t, lookupErr)
		assert.Equal(t, int64(0), record.Stats.TotalClicks)
	})

	t.Run("owner sink failure is absorbed", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})
		sink := &recordingSink{err: errors.New("sink down")}
		f.pipeline = ingest.NewPipeline(f.dir, f.store, &stubGeo{}, sink, noopPublish[ingest.ClickRecorded](), zap.NewNop())

		_, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))

		assert.NoError(t, err)
	})

	t.Run("owner sink receives clicks", func(t *testing.T) {
		f := newFixture(t, &stubGeo{})
		sink := &recordingSink{}
		f.pipeline = ingest.NewPipeline(f.dir, f.store, &stubGeo{}, sink, noopPublish[ingest.ClickRecorded](), zap.NewNop())

		_, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, "203.0.113.5", "ua"))

		require.NoError(t, err)
		assert.Equal(t, int64(1), sink.clicks["owner-1"])
	})
}

func TestRecordClick_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubGeo{})

	const n = 50

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			ip := fmt.Sprintf("203.0.113.%d", i+1)
			_, err := f.pipeline.RecordClick(ctx, submission(f.url.ID, ip, "ua"))
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	record, err := f.dir.FindActiveByID(ctx, f.url.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), record.Stats.TotalClicks)
	assert.Equal(t, int64(n), record.Stats.UniqueClicks)
	assert.LessOrEqual(t, record.Stats.UniqueClicks, record.Stats.TotalClicks)
}
