package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/eventstore"
)

// DefaultRealtimeWindow is the trailing window realtime statistics cover
// when the caller does not override it.
const DefaultRealtimeWindow = 60 * time.Minute

// TopActiveURLs is how many recently active URLs the global pulse lists.
const TopActiveURLs = 5

// RealtimeWindow computes platform-wide short-window statistics over the
// trailing window.
func (e *Engine) RealtimeWindow(ctx context.Context, window time.Duration) (*WindowStats, error) {
	if window <= 0 {
		window = DefaultRealtimeWindow
	}

	now := time.Now()

	events, err := e.events.Query(ctx, eventstore.Filter{From: now.Add(-window)})
	if err != nil {
		return nil, err
	}

	stats := &WindowStats{
		WindowMinutes: int(window.Minutes()),
		RecentClicks:  int64(len(events)),
		ActiveURLs: int64(len(lo.UniqBy(events, func(event *clickstream.ClickEvent) string {
			return event.URLID
		}))),
		ActiveCountries: distinctCountries(events),
	}

	if minutes := window.Minutes(); minutes > 0 {
		stats.ClicksPerMinute = float64(stats.RecentClicks) / minutes
	}

	return stats, nil
}

// URLPulse computes the short-window counters broadcast on a URL's topic.
func (e *Engine) URLPulse(ctx context.Context, urlID string) (*URLPulse, error) {
	now := time.Now()

	events, err := e.events.Query(ctx, eventstore.Filter{
		URLID: urlID,
		From:  now.Add(-time.Hour),
	})
	if err != nil {
		return nil, err
	}

	pulse := &URLPulse{
		URLID:          urlID,
		ClicksLastHour: int64(len(events)),
		VisitorsLastHour: int64(len(lo.UniqBy(events, func(event *clickstream.ClickEvent) string {
			return visitorKey(event)
		}))),
		CountriesLastHour: distinctCountries(events),
		ComputedAt:        now,
	}

	fiveMinutesAgo := now.Add(-5 * time.Minute)
	for _, event := range events {
		if !event.CreatedAt.Before(fiveMinutesAgo) {
			pulse.ClicksLast5Min++
		}
	}

	if record, err := e.urls.FindActiveByID(ctx, urlID); err == nil {
		pulse.ShortCode = record.ShortCode
	} else if !errors.Is(err, clickstream.ErrNotFound) {
		return nil, err
	}

	return pulse, nil
}

// GlobalPulse computes the platform-wide payload for the global topic,
// including the most recently active URLs.
func (e *Engine) GlobalPulse(ctx context.Context, window time.Duration) (*GlobalPulse, error) {
	if window <= 0 {
		window = DefaultRealtimeWindow
	}

	now := time.Now()

	events, err := e.events.Query(ctx, eventstore.Filter{From: now.Add(-window)})
	if err != nil {
		return nil, err
	}

	pulse := &GlobalPulse{ComputedAt: now}
	pulse.WindowMinutes = int(window.Minutes())
	pulse.RecentClicks = int64(len(events))
	pulse.ActiveCountries = distinctCountries(events)

	byURL := lo.GroupBy(events, func(event *clickstream.ClickEvent) string {
		return event.URLID
	})
	pulse.ActiveURLs = int64(len(byURL))

	if minutes := window.Minutes(); minutes > 0 {
		pulse.ClicksPerMinute = float64(pulse.RecentClicks) / minutes
	}

	top := make([]ActiveURL, 0, len(byURL))

	for urlID, urlEvents := range byURL {
		entry := ActiveURL{URLID: urlID, RecentClicks: int64(len(urlEvents))}

		for _, event := range urlEvents {
			if event.CreatedAt.After(entry.LastClickAt) {
				entry.LastClickAt = event.CreatedAt
			}
		}

		top = append(top, entry)
	}

	sort.Slice(top, func(i, j int) bool {
		return top[i].LastClickAt.After(top[j].LastClickAt)
	})

	if len(top) > TopActiveURLs {
		top = top[:TopActiveURLs]
	}

	for i := range top {
		if record, err := e.urls.FindActiveByID(ctx, top[i].URLID); err == nil {
			top[i].ShortCode = record.ShortCode
		}
	}

	pulse.TopURLs = top

	return pulse, nil
}

func distinctCountries(events []*clickstream.ClickEvent) int64 {
	countries := make(map[string]struct{})

	for _, event := range events {
		if event.Location != nil && event.Location.CountryCode != "" {
			countries[event.Location.CountryCode] = struct{}{}
		}
	}

	return int64(len(countries))
}
