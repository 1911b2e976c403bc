package urldir_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/urldir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory() *urldir.MemoryDirectory {
	counter := 0
	mu := sync.Mutex{}

	return urldir.NewMemoryDirectory(func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++

		return string(rune('a'+counter)) + "code"
	})
}

func TestMemoryDirectory_Lookup(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory()

	record, err := dir.Create(ctx, "https://example.com", "owner-1", nil)
	require.NoError(t, err)

	t.Run("finds active record by id and code", func(t *testing.T) {
		byID, err := dir.FindActiveByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, byID.ID)

		byCode, err := dir.FindActiveByCode(ctx, record.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, record.ID, byCode.ID)
	})

	t.Run("missing record is not found", func(t *testing.T) {
		_, err := dir.FindActiveByID(ctx, "missing")
		assert.ErrorIs(t, err, clickstream.ErrNotFound)
	})

	t.Run("inactive record is not found", func(t *testing.T) {
		inactive, err := dir.Create(ctx, "https://example.com/2", "", nil)
		require.NoError(t, err)

		dir.Deactivate(inactive.ID)

		_, err = dir.FindActiveByID(ctx, inactive.ID)
		assert.ErrorIs(t, err, clickstream.ErrNotFound)
	})

	t.Run("expired record is not found", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)

		expired, err := dir.Create(ctx, "https://example.com/3", "", &past)
		require.NoError(t, err)

		_, err = dir.FindActiveByID(ctx, expired.ID)
		assert.ErrorIs(t, err, clickstream.ErrNotFound)
	})
}

func TestMemoryDirectory_IncrementCounters(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory()

	record, err := dir.Create(ctx, "https://example.com", "", nil)
	require.NoError(t, err)

	now := time.Now()

	stats, err := dir.IncrementCounters(ctx, record.ID, true, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClicks)
	assert.Equal(t, int64(1), stats.UniqueClicks)
	require.NotNil(t, stats.LastClickedAt)

	stats, err = dir.IncrementCounters(ctx, record.ID, false, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, int64(1), stats.UniqueClicks)

	_, err = dir.IncrementCounters(ctx, "missing", false, now)
	assert.ErrorIs(t, err, clickstream.ErrNotFound)
}

func TestMemoryDirectory_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory()

	record, err := dir.Create(ctx, "https://example.com", "", nil)
	require.NoError(t, err)

	const n = 100

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func(unique bool) {
			defer wg.Done()

			_, _ = dir.IncrementCounters(ctx, record.ID, unique, time.Now())
		}(i%2 == 0)
	}

	wg.Wait()

	found, err := dir.FindActiveByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), found.Stats.TotalClicks)
	assert.Equal(t, int64(n/2), found.Stats.UniqueClicks)
	assert.LessOrEqual(t, found.Stats.UniqueClicks, found.Stats.TotalClicks)
}
