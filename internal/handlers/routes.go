package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the HTTP surface: redirect and tracking,
// URL creation, analytics reports, export, retention, and health.
func RegisterRoutes(
	api huma.API,
	clicks *ClickHandler,
	urls *URLHandler,
	reports *AnalyticsHandler,
	health *HealthHandler,
) {
	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/urls",
		Summary:     "Create short URL",
		Description: "Registers a new short URL for click tracking.",
		Tags:        []string{"URLs"},
	}, urls.CreateShortURL)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Records the click and redirects to the original URL.",
		Tags:        []string{"Clicks"},
	}, clicks.RedirectToURL)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/clicks/{code}",
		Summary:     "Track click",
		Description: "Records a click with visitor identity and custom tracking data.",
		Tags:        []string{"Clicks"},
	}, clicks.TrackClick)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/urls/{id}/analytics",
		Summary: "URL analytics report",
		Tags:    []string{"Analytics"},
	}, reports.GetURLReport)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/urls/{id}/performance",
		Summary: "URL performance block",
		Tags:    []string{"Analytics"},
	}, reports.GetURLPerformance)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/urls/{id}/export",
		Summary: "Export raw click events",
		Tags:    []string{"Analytics"},
	}, reports.ExportEvents)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/owners/{ownerId}/dashboard",
		Summary: "Owner dashboard",
		Tags:    []string{"Analytics"},
	}, reports.GetOwnerDashboard)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/analytics/platform",
		Summary: "Platform-wide report",
		Tags:    []string{"Analytics"},
	}, reports.GetPlatformReport)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/analytics/realtime",
		Summary: "Live snapshot",
		Tags:    []string{"Analytics"},
	}, reports.GetRealtime)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/admin/retention/purge",
		Summary: "Purge expired events",
		Tags:    []string{"Admin"},
	}, reports.PurgeEvents)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/health",
		Summary: "Health check",
		Tags:    []string{"Health"},
	}, health.Check)
}

// RegisterWebSocket mounts the realtime websocket endpoint on the router
// directly; the upgrade does not go through huma.
func RegisterWebSocket(router chi.Router, ws http.Handler) {
	router.Handle("/ws", ws)
}
