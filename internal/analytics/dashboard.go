package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// dashboardTopURLs is how many URLs the owner dashboard ranks.
const dashboardTopURLs = 5

// dashboardRecentActivity is how many events the activity feed shows.
const dashboardRecentActivity = 10

// OwnerDashboard aggregates analytics across every URL owned by one
// account. An owner with no URLs gets an empty dashboard, not an error.
func (e *Engine) OwnerDashboard(ctx context.Context, ownerID string, opts QueryOptions) (*OwnerDashboard, error) {
	records, err := e.urls.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	dashboard := &OwnerDashboard{
		OwnerID:        ownerID,
		URLCount:       len(records),
		TopURLs:        []OwnerURL{},
		RecentActivity: []RecentActivity{},
		Trend:          TrendStable,
	}

	urlIDs := lo.Map(records, func(record *urldir.URLRecord, _ int) string {
		return record.ID
	})

	opts.URLID = ""
	opts.URLIDs = urlIDs

	if len(urlIDs) == 0 {
		e.logger.Debug("owner has no urls", zap.String("ownerId", ownerID))
		dashboard.Report = emptyReport()

		return dashboard, nil
	}

	report, err := e.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	dashboard.Report = report

	ranked := lo.Map(records, func(record *urldir.URLRecord, _ int) OwnerURL {
		return OwnerURL{
			URLID:        record.ID,
			ShortCode:    record.ShortCode,
			OriginalURL:  record.OriginalURL,
			TotalClicks:  record.Stats.TotalClicks,
			UniqueClicks: record.Stats.UniqueClicks,
		}
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalClicks > ranked[j].TotalClicks
	})

	if len(ranked) > dashboardTopURLs {
		ranked = ranked[:dashboardTopURLs]
	}

	dashboard.TopURLs = ranked

	recent, err := e.events.Query(ctx, eventstore.Filter{
		URLIDs:      urlIDs,
		NewestFirst: true,
		Limit:       dashboardRecentActivity,
	})
	if err != nil {
		return nil, err
	}

	dashboard.RecentActivity = lo.Map(recent, func(event *clickstream.ClickEvent, _ int) RecentActivity {
		activity := RecentActivity{
			EventID:   event.ID,
			URLID:     event.URLID,
			Device:    string(event.Device.Type),
			IsUnique:  event.IsUnique,
			CreatedAt: event.CreatedAt,
		}
		if event.Location != nil {
			activity.Country = event.Location.Country
		}

		return activity
	})

	ownerEvents, err := e.events.Query(ctx, eventstore.Filter{
		URLIDs: urlIDs,
		From:   time.Now().AddDate(0, 0, -14),
	})
	if err != nil {
		return nil, err
	}

	dashboard.Trend = trendLabel(ownerEvents, time.Now())

	return dashboard, nil
}

// PlatformReport computes a report over the whole platform.
func (e *Engine) PlatformReport(ctx context.Context, opts QueryOptions) (*Report, error) {
	opts.URLID = ""
	opts.URLIDs = nil

	return e.Query(ctx, opts)
}

func emptyReport() *Report {
	return &Report{
		TopCountries: []FacetCount{},
		TopDevices:   []FacetCount{},
		TopBrowsers:  []FacetCount{},
		TopReferrers: []FacetCount{},
		Hourly:       computeHourly(nil),
		Daily:        []DayBucket{},
	}
}
