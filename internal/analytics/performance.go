package analytics

import (
	"context"
	"math"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/eventstore"
)

// Engagement score weights: volume 30%, uniqueness ratio 25%, device
// diversity 25%, geo diversity 20%.
const (
	weightVolume          = 0.30
	weightUniqueness      = 0.25
	weightDeviceDiversity = 0.25
	weightGeoDiversity    = 0.20

	// volumeSaturation is the click count at which the volume component
	// maxes out.
	volumeSaturation = 1000.0

	// trendDeadBand is the relative change below which the trend is
	// labeled stable.
	trendDeadBand = 0.10
)

// Performance derives the per-URL performance block: clicks/day since
// creation, unique-click conversion, engagement score, busiest hour, and
// a 7-day-over-7-day trend label.
func (e *Engine) Performance(ctx context.Context, urlID string) (*Performance, error) {
	record, err := e.urls.FindActiveByID(ctx, urlID)
	if err != nil {
		return nil, err
	}

	events, err := e.events.Query(ctx, eventstore.Filter{URLID: urlID})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	total := int64(len(events))

	perf := &Performance{URLID: urlID}

	days := now.Sub(record.CreatedAt).Hours() / 24
	if days < 1 {
		days = 1
	}

	perf.ClicksPerDay = float64(total) / days

	var unique int64

	for _, event := range events {
		if event.IsUnique {
			unique++
		}
	}

	if total > 0 {
		perf.ConversionRate = float64(unique) / float64(total) * 100
	}

	perf.EngagementScore = engagementScore(events, total, unique)
	perf.BusiestHour = busiestHour(events)
	perf.Trend = trendLabel(events, now)

	return perf, nil
}

func engagementScore(events []*clickstream.ClickEvent, total, unique int64) float64 {
	if total == 0 {
		return 0
	}

	volume := math.Min(1, float64(total)/volumeSaturation)
	uniqueness := float64(unique) / float64(total)

	devices := make(map[clickstream.DeviceType]struct{})

	for _, event := range events {
		devices[event.Device.Type] = struct{}{}
	}

	deviceDiversity := math.Min(1, float64(len(devices))/5)
	geoDiversity := math.Min(1, float64(distinctCountries(events))/10)

	score := 100 * (weightVolume*volume +
		weightUniqueness*uniqueness +
		weightDeviceDiversity*deviceDiversity +
		weightGeoDiversity*geoDiversity)

	return math.Round(score*100) / 100
}

func busiestHour(events []*clickstream.ClickEvent) int {
	var counts [24]int64

	for _, event := range events {
		counts[event.CreatedAt.UTC().Hour()]++
	}

	busiest := 0

	for hour := 1; hour < 24; hour++ {
		if counts[hour] > counts[busiest] {
			busiest = hour
		}
	}

	return busiest
}

// trendLabel compares the most recent 7-day average against the prior
// 7-day average with a ±10% dead-band.
func trendLabel(events []*clickstream.ClickEvent, now time.Time) string {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var recent, prior float64

	for _, event := range events {
		switch {
		case !event.CreatedAt.Before(weekAgo):
			recent++
		case !event.CreatedAt.Before(twoWeeksAgo):
			prior++
		}
	}

	recentAvg := recent / 7
	priorAvg := prior / 7

	if priorAvg == 0 {
		if recentAvg > 0 {
			return TrendUp
		}

		return TrendStable
	}

	change := (recentAvg - priorAvg) / priorAvg

	switch {
	case change > trendDeadBand:
		return TrendUp
	case change < -trendDeadBand:
		return TrendDown
	default:
		return TrendStable
	}
}
