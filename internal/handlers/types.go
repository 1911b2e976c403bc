package handlers

import (
	"time"

	"github.com/serroba/clickstream-go/internal/analytics"
	"github.com/serroba/clickstream-go/internal/retention"
)

// CreateShortURLRequest is the request body for creating a short URL.
type CreateShortURLRequest struct {
	Body struct {
		URL       string     `doc:"The URL to shorten"               example:"https://example.com/very/long/path" json:"url"`
		OwnerID   string     `doc:"Owning account id"                example:"owner-42"                           json:"ownerId,omitempty"`
		ExpiresAt *time.Time `doc:"Optional expiry instant"          json:"expiresAt,omitempty"`
	}
}

// CreateShortURLResponse is the response for a successfully created short URL.
type CreateShortURLResponse struct {
	Headers struct {
		Location string `doc:"The short URL location" header:"Location"`
	}
	Body struct {
		ID          string `doc:"The URL record id"  json:"id"`
		Code        string `doc:"The short code"     example:"abc123"                             json:"code"`
		ShortURL    string `doc:"The full short URL" example:"http://localhost:8888/abc123"       json:"shortUrl"`
		OriginalURL string `doc:"The original URL"   example:"https://example.com/very/long/path" json:"originalUrl"`
	}
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse redirects to the original URL after the click is
// recorded.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location string `doc:"The original URL" header:"Location"`
	}
}

// TrackClickRequest records a click explicitly, for instrumented clients
// that carry visitor identity and custom tracking data.
type TrackClickRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`

	Body struct {
		VisitorID  string         `doc:"Authenticated visitor id"         json:"visitorId,omitempty"`
		SessionID  string         `doc:"Client session token"             json:"sessionId,omitempty"`
		Custom     map[string]any `doc:"Free-form tracking data"          json:"custom,omitempty"`
		LoadTimeMs *float64       `doc:"Page load time in milliseconds"   json:"loadTimeMs,omitempty"`
	}
}

// TrackClickResponse reports the recorded event and the post-increment
// counters.
type TrackClickResponse struct {
	Body struct {
		EventID      string     `doc:"The recorded event id"      json:"eventId"`
		IsUnique     bool       `doc:"First click from this IP"   json:"isUnique"`
		IsBot        bool       `doc:"Classified as a bot"        json:"isBot"`
		TotalClicks  int64      `doc:"Total clicks after this one" json:"totalClicks"`
		UniqueClicks int64      `doc:"Unique clicks after this one" json:"uniqueClicks"`
		LastClickAt  *time.Time `doc:"Last-clicked timestamp"     json:"lastClickAt,omitempty"`
	}
}

// ReportWindow holds the query parameters shared by report endpoints.
type ReportWindow struct {
	From        time.Time `doc:"Start of the time range (inclusive)" query:"from"`
	To          time.Time `doc:"End of the time range (exclusive)"   query:"to"`
	ExcludeBots bool      `doc:"Drop bot-classified events"          query:"excludeBots"`
}

// URLReportRequest selects the analytics report for one URL.
type URLReportRequest struct {
	ID string `doc:"The URL record id" path:"id"`
	ReportWindow
}

// ReportResponse wraps a full analytics report.
type ReportResponse struct {
	Body *analytics.Report
}

// PerformanceRequest selects the derived performance block for one URL.
type PerformanceRequest struct {
	ID string `doc:"The URL record id" path:"id"`
}

// PerformanceResponse wraps the performance block.
type PerformanceResponse struct {
	Body *analytics.Performance
}

// DashboardRequest selects the aggregated dashboard for one owner.
type DashboardRequest struct {
	OwnerID string `doc:"The owning account id" path:"ownerId"`
	ReportWindow
}

// DashboardResponse wraps the owner dashboard.
type DashboardResponse struct {
	Body *analytics.OwnerDashboard
}

// PlatformReportRequest selects the platform-wide report.
type PlatformReportRequest struct {
	ReportWindow
}

// RealtimeRequest selects the short-window live snapshot.
type RealtimeRequest struct {
	WindowMinutes int `doc:"Trailing window in minutes" query:"windowMinutes" minimum:"0" maximum:"1440"`
}

// RealtimeResponse wraps the live snapshot.
type RealtimeResponse struct {
	Body *analytics.GlobalPulse
}

// ExportRequest selects a raw event export for one URL.
type ExportRequest struct {
	ID string `doc:"The URL record id" path:"id"`
	ReportWindow

	Fields string `doc:"Comma-separated field selection, dotted paths allowed" example:"id,location.city" query:"fields"`
	Limit  int    `doc:"Maximum number of events"                              query:"limit"              minimum:"0" maximum:"10000"`
}

// ExportResponse carries the exported events newest-first.
type ExportResponse struct {
	Body struct {
		Count  int              `doc:"Number of exported events" json:"count"`
		Events []map[string]any `doc:"Raw events"                json:"events"`
	}
}

// PurgeRequest triggers a retention sweep.
type PurgeRequest struct {
	Body struct {
		RetentionDays int  `doc:"Events older than this many days are purged" json:"retentionDays" minimum:"1"`
		DryRun        bool `doc:"Count without deleting"                      json:"dryRun,omitempty"`
	}
}

// PurgeResponse reports what the sweep did.
type PurgeResponse struct {
	Body *retention.Result
}
