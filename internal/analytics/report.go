// Package analytics computes windowed rollups and reports over the click
// event stream. Every query is read-only and tolerates a slightly stale
// view of in-flight ingestions.
package analytics

import "time"

// Overview is the headline block of a report.
type Overview struct {
	TotalClicks   int64   `json:"totalClicks"`
	UniqueClicks  int64   `json:"uniqueClicks"`
	BotClicks     int64   `json:"botClicks"`
	AvgLoadTimeMs float64 `json:"avgLoadTimeMs"`
}

// FacetCount is one ranked entry of a rollup dimension. Ranking is by
// count descending; ties keep first-seen order.
type FacetCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// HourBucket aggregates clicks for one hour of day (0-23).
type HourBucket struct {
	Hour     int   `json:"hour"`
	Clicks   int64 `json:"clicks"`
	Visitors int64 `json:"visitors"`
	IPs      int64 `json:"ips"`
}

// DayBucket aggregates clicks for one calendar day.
type DayBucket struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Visitors    int64  `json:"visitors"`
	Users       int64  `json:"users"`
	Countries   int64  `json:"countries"`
	DeviceTypes int64  `json:"deviceTypes"`
	BotClicks   int64  `json:"botClicks"`
	HumanClicks int64  `json:"humanClicks"`
}

// Report is a full analytics report over a filtered event set.
type Report struct {
	Overview     Overview     `json:"overview"`
	TopCountries []FacetCount `json:"topCountries"`
	TopDevices   []FacetCount `json:"topDevices"`
	TopBrowsers  []FacetCount `json:"topBrowsers"`
	TopReferrers []FacetCount `json:"topReferrers"`
	Hourly       []HourBucket `json:"hourly"`
	Daily        []DayBucket  `json:"daily"`
}

// WindowStats are short-window ("real-time") platform statistics.
type WindowStats struct {
	WindowMinutes   int     `json:"windowMinutes"`
	RecentClicks    int64   `json:"recentClicks"`
	ActiveURLs      int64   `json:"activeUrls"`
	ActiveCountries int64   `json:"activeCountries"`
	ClicksPerMinute float64 `json:"clicksPerMinute"`
}

// URLPulse is the per-URL short-window payload pushed to its topic after
// each ingested click.
type URLPulse struct {
	URLID             string    `json:"urlId"`
	ShortCode         string    `json:"shortCode"`
	ClicksLast5Min    int64     `json:"clicksLast5Min"`
	ClicksLastHour    int64     `json:"clicksLastHour"`
	VisitorsLastHour  int64     `json:"visitorsLastHour"`
	CountriesLastHour int64     `json:"countriesLastHour"`
	ComputedAt        time.Time `json:"computedAt"`
}

// ActiveURL is one entry of the platform's most-recently-active list.
type ActiveURL struct {
	URLID        string    `json:"urlId"`
	ShortCode    string    `json:"shortCode,omitempty"`
	RecentClicks int64     `json:"recentClicks"`
	LastClickAt  time.Time `json:"lastClickAt"`
}

// GlobalPulse is the platform-wide short-window payload for the global
// topic.
type GlobalPulse struct {
	WindowStats

	TopURLs    []ActiveURL `json:"topUrls"`
	ComputedAt time.Time   `json:"computedAt"`
}

// Trend labels for the performance block.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Performance is the derived per-URL performance block.
type Performance struct {
	URLID           string  `json:"urlId"`
	ClicksPerDay    float64 `json:"clicksPerDay"`
	ConversionRate  float64 `json:"conversionRate"`
	EngagementScore float64 `json:"engagementScore"`
	BusiestHour     int     `json:"busiestHour"`
	Trend           string  `json:"trend"`
}

// OwnerDashboard aggregates analytics across all URLs owned by one
// account.
type OwnerDashboard struct {
	OwnerID        string           `json:"ownerId"`
	URLCount       int              `json:"urlCount"`
	Report         *Report          `json:"report"`
	TopURLs        []OwnerURL       `json:"topUrls"`
	RecentActivity []RecentActivity `json:"recentActivity"`
	Trend          string           `json:"trend"`
}

// OwnerURL summarizes one URL on the owner dashboard, ranked by total
// clicks.
type OwnerURL struct {
	URLID        string `json:"urlId"`
	ShortCode    string `json:"shortCode"`
	OriginalURL  string `json:"originalUrl"`
	TotalClicks  int64  `json:"totalClicks"`
	UniqueClicks int64  `json:"uniqueClicks"`
}

// RecentActivity is one row of the dashboard's newest-first activity feed.
type RecentActivity struct {
	EventID   string    `json:"eventId"`
	URLID     string    `json:"urlId"`
	Country   string    `json:"country,omitempty"`
	Device    string    `json:"device"`
	IsUnique  bool      `json:"isUnique"`
	CreatedAt time.Time `json:"createdAt"`
}
