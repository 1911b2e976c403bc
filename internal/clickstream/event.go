// Package clickstream defines the domain entities for the click ingestion
// and analytics pipeline.
package clickstream

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Length caps applied at the ingestion boundary. Oversized values are
// rejected, never truncated, so exports round-trip exactly.
const (
	MaxUserAgentLength = 1024
	MaxReferrerLength  = 2048
)

// DeviceType classifies the client that performed a click.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// Location holds geolocation facts derived from the client IP.
// All fields are optional; a failed lookup leaves the whole block absent.
type Location struct {
	CountryCode string   `json:"countryCode,omitempty"`
	Country     string   `json:"country,omitempty"`
	Region      string   `json:"region,omitempty"`
	City        string   `json:"city,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	ISP         string   `json:"isp,omitempty"`
}

// Device holds the user-agent classification for a click.
type Device struct {
	Type           DeviceType `json:"type"`
	Browser        string     `json:"browser,omitempty"`
	BrowserVersion string     `json:"browserVersion,omitempty"`
	OS             string     `json:"os,omitempty"`
	OSVersion      string     `json:"osVersion,omitempty"`
	Screen         string     `json:"screen,omitempty"`
	Engine         string     `json:"engine,omitempty"`
	Language       string     `json:"language,omitempty"`
}

// Campaign holds utm_* attribution extracted from the referrer.
type Campaign struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// ClickEvent is one immutable record of a single redirect traversal.
// Once persisted, its IP, timestamp, and derived facts never change.
type ClickEvent struct {
	ID        string `json:"id"`
	URLID     string `json:"urlId"`
	VisitorID string `json:"visitorId,omitempty"`

	IP        string `json:"ip"`
	UserAgent string `json:"userAgent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	Custom map[string]any `json:"custom,omitempty"`

	Location *Location `json:"location,omitempty"`
	Device   Device    `json:"device"`
	Campaign *Campaign `json:"campaign,omitempty"`

	IsBot    bool `json:"isBot"`
	IsUnique bool `json:"isUnique"`

	LoadTimeMs *float64 `json:"loadTimeMs,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// URLStats are the running counters owned by a URL record. They are
// mutated only through the directory's atomic increment.
type URLStats struct {
	TotalClicks   int64      `json:"totalClicks"`
	UniqueClicks  int64      `json:"uniqueClicks"`
	LastClickedAt *time.Time `json:"lastClickedAt,omitempty"`
}

// NewEventID returns a time-sortable event id.
func NewEventID() string {
	return ulid.Make().String()
}
