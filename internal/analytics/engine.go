package analytics

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// TopN is how many entries each facet rollup keeps.
const TopN = 10

// DirectReferrer labels clicks that arrived without a referrer.
const DirectReferrer = "(direct)"

// UnknownCountry labels clicks without geolocation data.
const UnknownCountry = "Unknown"

// Engine computes reports over the event store.
type Engine struct {
	events eventstore.Store
	urls   urldir.Directory
	logger *zap.Logger
}

// NewEngine creates an aggregation engine.
func NewEngine(events eventstore.Store, urls urldir.Directory, logger *zap.Logger) *Engine {
	return &Engine{events: events, urls: urls, logger: logger}
}

// QueryOptions select the event set a report is computed over.
type QueryOptions struct {
	URLID       string
	URLIDs      []string
	From        time.Time
	To          time.Time
	ExcludeBots bool
}

func (o QueryOptions) filter() eventstore.Filter {
	return eventstore.Filter{
		URLID:       o.URLID,
		URLIDs:      o.URLIDs,
		From:        o.From,
		To:          o.To,
		ExcludeBots: o.ExcludeBots,
	}
}

// Query computes a full report. Each facet is an independent aggregation
// over the same filtered event set; facets run concurrently and the report
// is assembled from their results. An empty event set yields a zeroed
// report, never an error.
func (e *Engine) Query(ctx context.Context, opts QueryOptions) (*Report, error) {
	events, err := e.events.Query(ctx, opts.filter())
	if err != nil {
		return nil, err
	}

	report := &Report{}

	facets := []func(){
		func() { report.Overview = computeOverview(events) },
		func() { report.TopCountries = rankTop(events, countryKey, TopN) },
		func() { report.TopDevices = rankTop(events, deviceKey, TopN) },
		func() { report.TopBrowsers = rankTop(events, browserKey, TopN) },
		func() { report.TopReferrers = rankTop(events, referrerKey, TopN) },
		func() { report.Hourly = computeHourly(events) },
		func() { report.Daily = computeDaily(events) },
	}

	var wg sync.WaitGroup

	for _, facet := range facets {
		wg.Add(1)

		go func(f func()) {
			defer wg.Done()
			f()
		}(facet)
	}

	wg.Wait()

	return report, nil
}

func computeOverview(events []*clickstream.ClickEvent) Overview {
	overview := Overview{TotalClicks: int64(len(events))}

	var (
		loadTimeSum float64
		loadTimeN   int64
	)

	for _, event := range events {
		if event.IsUnique {
			overview.UniqueClicks++
		}

		if event.IsBot {
			overview.BotClicks++
		}

		if event.LoadTimeMs != nil {
			loadTimeSum += *event.LoadTimeMs
			loadTimeN++
		}
	}

	if loadTimeN > 0 {
		overview.AvgLoadTimeMs = loadTimeSum / float64(loadTimeN)
	}

	return overview
}

// rankTop groups events by key and returns the n most frequent groups.
// Groups are collected in first-seen order, and the descending sort is
// stable, so equal counts keep that order.
func rankTop(events []*clickstream.ClickEvent, key func(*clickstream.ClickEvent) string, n int) []FacetCount {
	counts := make(map[string]int64)
	order := make([]string, 0)

	for _, event := range events {
		k := key(event)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}

		counts[k]++
	}

	ranked := lo.Map(order, func(k string, _ int) FacetCount {
		return FacetCount{Key: k, Count: counts[k]}
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

func countryKey(event *clickstream.ClickEvent) string {
	if event.Location == nil || event.Location.Country == "" {
		return UnknownCountry
	}

	return event.Location.Country
}

func deviceKey(event *clickstream.ClickEvent) string {
	return string(event.Device.Type)
}

func browserKey(event *clickstream.ClickEvent) string {
	if event.Device.Browser == "" {
		return "Unknown"
	}

	return event.Device.Browser
}

func referrerKey(event *clickstream.ClickEvent) string {
	if event.Referrer == "" {
		return DirectReferrer
	}

	if parsed, err := url.Parse(event.Referrer); err == nil && parsed.Host != "" {
		return parsed.Host
	}

	return event.Referrer
}

// visitorKey identifies a visitor for distinct counts: the session token
// when present, the normalized IP otherwise.
func visitorKey(event *clickstream.ClickEvent) string {
	if event.SessionID != "" {
		return event.SessionID
	}

	return event.IP
}

func computeHourly(events []*clickstream.ClickEvent) []HourBucket {
	buckets := make([]HourBucket, 24)
	visitors := make([]map[string]struct{}, 24)
	ips := make([]map[string]struct{}, 24)

	for i := range buckets {
		buckets[i].Hour = i
		visitors[i] = make(map[string]struct{})
		ips[i] = make(map[string]struct{})
	}

	for _, event := range events {
		hour := event.CreatedAt.UTC().Hour()
		buckets[hour].Clicks++
		visitors[hour][visitorKey(event)] = struct{}{}
		ips[hour][event.IP] = struct{}{}
	}

	for i := range buckets {
		buckets[i].Visitors = int64(len(visitors[i]))
		buckets[i].IPs = int64(len(ips[i]))
	}

	return buckets
}

type dayAccumulator struct {
	bucket    DayBucket
	visitors  map[string]struct{}
	users     map[string]struct{}
	countries map[string]struct{}
	devices   map[string]struct{}
}

func computeDaily(events []*clickstream.ClickEvent) []DayBucket {
	days := make(map[string]*dayAccumulator)
	order := make([]string, 0)

	for _, event := range events {
		date := event.CreatedAt.UTC().Format("2006-01-02")

		acc, ok := days[date]
		if !ok {
			acc = &dayAccumulator{
				bucket:    DayBucket{Date: date},
				visitors:  make(map[string]struct{}),
				users:     make(map[string]struct{}),
				countries: make(map[string]struct{}),
				devices:   make(map[string]struct{}),
			}
			days[date] = acc
			order = append(order, date)
		}

		acc.bucket.Clicks++
		acc.visitors[visitorKey(event)] = struct{}{}
		acc.devices[string(event.Device.Type)] = struct{}{}

		if event.VisitorID != "" {
			acc.users[event.VisitorID] = struct{}{}
		}

		if event.Location != nil && event.Location.CountryCode != "" {
			acc.countries[event.Location.CountryCode] = struct{}{}
		}

		if event.IsBot {
			acc.bucket.BotClicks++
		} else {
			acc.bucket.HumanClicks++
		}
	}

	sort.Strings(order)

	return lo.Map(order, func(date string, _ int) DayBucket {
		acc := days[date]
		acc.bucket.Visitors = int64(len(acc.visitors))
		acc.bucket.Users = int64(len(acc.users))
		acc.bucket.Countries = int64(len(acc.countries))
		acc.bucket.DeviceTypes = int64(len(acc.devices))

		return acc.bucket
	})
}
