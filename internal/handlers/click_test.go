package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/clickstream-go/internal/analytics"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/handlers"
	"github.com/serroba/clickstream-go/internal/ingest"
	"github.com/serroba/clickstream-go/internal/retention"
	"github.com/serroba/clickstream-go/internal/urldir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGeo struct{}

func (stubGeo) Resolve(_ context.Context, ip string) (*clickstream.Location, error) {
	if enrich.IsPrivateIP(ip) {
		return enrich.LocalLocation(), nil
	}

	return &clickstream.Location{CountryCode: "DE", Country: "Germany", City: "Berlin"}, nil
}

type fixture struct {
	dir    *urldir.MemoryDirectory
	store  *eventstore.MemoryStore
	record *urldir.URLRecord

	clicks  *handlers.ClickHandler
	urls    *handlers.URLHandler
	reports *handlers.AnalyticsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := urldir.NewMemoryDirectory(func() string { return "abc123" })
	store := eventstore.NewMemoryStore()

	record, err := dir.Create(context.Background(), "https://example.com/landing", "owner-1", nil)
	require.NoError(t, err)

	pipeline := ingest.NewPipeline(dir, store, stubGeo{}, nil, nil, zap.NewNop())
	engine := analytics.NewEngine(store, dir, zap.NewNop())
	manager := retention.NewManager(store, 100, time.Millisecond, zap.NewNop())

	return &fixture{
		dir:     dir,
		store:   store,
		record:  record,
		clicks:  handlers.NewClickHandler(dir, pipeline, zap.NewNop()),
		urls:    handlers.NewURLHandler(dir, "http://localhost:8888", zap.NewNop()),
		reports: handlers.NewAnalyticsHandler(engine, dir, manager, zap.NewNop()),
	}
}

func metaContext(ip, userAgent string) context.Context {
	return handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
		RemoteIP:  ip,
		Headers:   http.Header{},
		UserAgent: userAgent,
	})
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)

	return statusErr.GetStatus()
}

func TestRedirectToURL(t *testing.T) {
	t.Run("records the click and redirects", func(t *testing.T) {
		f := newFixture(t)
		ctx := metaContext("93.184.216.34", "Mozilla/5.0 (Windows NT 10.0) Chrome/115.0")

		resp, err := f.clicks.RedirectToURL(ctx, &handlers.RedirectRequest{Code: "abc123"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, "https://example.com/landing", resp.Headers.Location)

		events, err := f.store.Query(context.Background(), eventstore.Filter{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].IsUnique)
	})

	t.Run("unknown code is a 404", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.clicks.RedirectToURL(metaContext("93.184.216.34", ""), &handlers.RedirectRequest{Code: "missing"})

		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("deactivated url is a 404 and records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.dir.Deactivate(f.record.ID)

		_, err := f.clicks.RedirectToURL(metaContext("93.184.216.34", ""), &handlers.RedirectRequest{Code: "abc123"})

		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))

		events, err := f.store.Query(context.Background(), eventstore.Filter{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("oversized user-agent is a 422", func(t *testing.T) {
		f := newFixture(t)
		huge := make([]byte, clickstream.MaxUserAgentLength+1)

		for i := range huge {
			huge[i] = 'a'
		}

		_, err := f.clicks.RedirectToURL(metaContext("93.184.216.34", string(huge)), &handlers.RedirectRequest{Code: "abc123"})

		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})
}

func TestTrackClick(t *testing.T) {
	t.Run("records visitor identity and custom data", func(t *testing.T) {
		f := newFixture(t)

		req := &handlers.TrackClickRequest{Code: "abc123"}
		req.Body.VisitorID = "visitor-9"
		req.Body.SessionID = "session-1"
		req.Body.Custom = map[string]any{"plan": "pro", "step": 3}

		resp, err := f.clicks.TrackClick(metaContext("93.184.216.34", "Mozilla/5.0"), req)

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Body.EventID)
		assert.True(t, resp.Body.IsUnique)
		assert.Equal(t, int64(1), resp.Body.TotalClicks)
		assert.Equal(t, int64(1), resp.Body.UniqueClicks)

		events, err := f.store.Query(context.Background(), eventstore.Filter{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "visitor-9", events[0].VisitorID)
		assert.Equal(t, "pro", events[0].Custom["plan"])
	})

	t.Run("repeat clicks keep counters consistent", func(t *testing.T) {
		f := newFixture(t)
		ctx := metaContext("93.184.216.34", "Mozilla/5.0")

		for i := 0; i < 3; i++ {
			_, err := f.clicks.TrackClick(ctx, &handlers.TrackClickRequest{Code: "abc123"})
			require.NoError(t, err)
		}

		updated, err := f.dir.FindActiveByID(context.Background(), f.record.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), updated.Stats.TotalClicks)
		assert.Equal(t, int64(1), updated.Stats.UniqueClicks)
	})
}

func TestCreateShortURL(t *testing.T) {
	t.Run("creates short url successfully", func(t *testing.T) {
		f := newFixture(t)

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = "https://example.com/very/long/path"
		req.Body.OwnerID = "owner-2"

		resp, err := f.urls.CreateShortURL(context.Background(), req)

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Body.ID)
		assert.Equal(t, "abc123", resp.Body.Code)
		assert.Equal(t, "https://example.com/very/long/path", resp.Body.OriginalURL)
		assert.Contains(t, resp.Body.ShortURL, resp.Body.Code)
		assert.Equal(t, resp.Body.ShortURL, resp.Headers.Location)
	})

	t.Run("rejects a relative url", func(t *testing.T) {
		f := newFixture(t)

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = "/just/a/path"

		_, err := f.urls.CreateShortURL(context.Background(), req)

		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})
}
