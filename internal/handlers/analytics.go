package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/clickstream-go/internal/analytics"
	"github.com/serroba/clickstream-go/internal/retention"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// AnalyticsHandler serves reports, dashboards, exports, and the
// retention sweep.
type AnalyticsHandler struct {
	engine    *analytics.Engine
	urls      urldir.Directory
	retention *retention.Manager
	logger    *zap.Logger
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(
	engine *analytics.Engine,
	urls urldir.Directory,
	retention *retention.Manager,
	logger *zap.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine, urls: urls, retention: retention, logger: logger}
}

// GetURLReport computes the analytics report for one URL.
func (h *AnalyticsHandler) GetURLReport(ctx context.Context, req *URLReportRequest) (*ReportResponse, error) {
	if _, err := h.urls.FindActiveByID(ctx, req.ID); err != nil {
		return nil, mapDomainError(err, "url not found")
	}

	report, err := h.engine.Query(ctx, analytics.QueryOptions{
		URLID:       req.ID,
		From:        req.From,
		To:          req.To,
		ExcludeBots: req.ExcludeBots,
	})
	if err != nil {
		h.logger.Error("failed to compute url report", zap.String("urlId", req.ID), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to compute report")
	}

	return &ReportResponse{Body: report}, nil
}

// GetURLPerformance computes the derived performance block for one URL.
func (h *AnalyticsHandler) GetURLPerformance(ctx context.Context, req *PerformanceRequest) (*PerformanceResponse, error) {
	performance, err := h.engine.Performance(ctx, req.ID)
	if err != nil {
		return nil, mapDomainError(err, "url not found")
	}

	return &PerformanceResponse{Body: performance}, nil
}

// GetOwnerDashboard aggregates analytics across all of an owner's URLs.
func (h *AnalyticsHandler) GetOwnerDashboard(ctx context.Context, req *DashboardRequest) (*DashboardResponse, error) {
	dashboard, err := h.engine.OwnerDashboard(ctx, req.OwnerID, analytics.QueryOptions{
		From:        req.From,
		To:          req.To,
		ExcludeBots: req.ExcludeBots,
	})
	if err != nil {
		h.logger.Error("failed to compute dashboard", zap.String("ownerId", req.OwnerID), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to compute dashboard")
	}

	return &DashboardResponse{Body: dashboard}, nil
}

// GetPlatformReport computes the report across every URL.
func (h *AnalyticsHandler) GetPlatformReport(ctx context.Context, req *PlatformReportRequest) (*ReportResponse, error) {
	report, err := h.engine.PlatformReport(ctx, analytics.QueryOptions{
		From:        req.From,
		To:          req.To,
		ExcludeBots: req.ExcludeBots,
	})
	if err != nil {
		h.logger.Error("failed to compute platform report", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to compute report")
	}

	return &ReportResponse{Body: report}, nil
}

// GetRealtime returns the current short-window snapshot.
func (h *AnalyticsHandler) GetRealtime(ctx context.Context, req *RealtimeRequest) (*RealtimeResponse, error) {
	pulse, err := h.engine.GlobalPulse(ctx, time.Duration(req.WindowMinutes)*time.Minute)
	if err != nil {
		h.logger.Error("failed to compute realtime snapshot", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to compute snapshot")
	}

	return &RealtimeResponse{Body: pulse}, nil
}

// ExportEvents returns raw events for one URL, newest-first.
func (h *AnalyticsHandler) ExportEvents(ctx context.Context, req *ExportRequest) (*ExportResponse, error) {
	if _, err := h.urls.FindActiveByID(ctx, req.ID); err != nil {
		return nil, mapDomainError(err, "url not found")
	}

	var fields []string

	if req.Fields != "" {
		for _, field := range strings.Split(req.Fields, ",") {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}
	}

	events, err := h.engine.Export(ctx, analytics.ExportOptions{
		URLID:       req.ID,
		From:        req.From,
		To:          req.To,
		ExcludeBots: req.ExcludeBots,
		Fields:      fields,
		Limit:       req.Limit,
	})
	if err != nil {
		h.logger.Error("failed to export events", zap.String("urlId", req.ID), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to export events")
	}

	resp := &ExportResponse{}
	resp.Body.Count = len(events)
	resp.Body.Events = events

	return resp, nil
}

// PurgeEvents runs a retention sweep, optionally as a dry run.
func (h *AnalyticsHandler) PurgeEvents(ctx context.Context, req *PurgeRequest) (*PurgeResponse, error) {
	result, err := h.retention.PurgeOlderThan(
		ctx,
		time.Duration(req.Body.RetentionDays)*24*time.Hour,
		req.Body.DryRun,
	)
	if err != nil {
		h.logger.Error("retention purge failed", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to purge events")
	}

	return &PurgeResponse{Body: result}, nil
}
