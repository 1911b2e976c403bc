package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/ingest"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// ClickHandler serves the redirect path and explicit click tracking.
type ClickHandler struct {
	urls     urldir.Directory
	pipeline *ingest.Pipeline
	logger   *zap.Logger
}

// NewClickHandler creates a click handler.
func NewClickHandler(urls urldir.Directory, pipeline *ingest.Pipeline, logger *zap.Logger) *ClickHandler {
	return &ClickHandler{urls: urls, pipeline: pipeline, logger: logger}
}

// RedirectToURL records the click and redirects to the original URL.
func (h *ClickHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	record, err := h.urls.FindActiveByCode(ctx, req.Code)
	if err != nil {
		return nil, mapDomainError(err, "short url not found")
	}

	meta := RequestMetaFromContext(ctx)

	result, err := h.pipeline.RecordClick(ctx, ingest.Submission{
		URLID:     record.ID,
		RemoteIP:  meta.RemoteIP,
		Headers:   meta.Headers,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	})
	if err != nil {
		h.logger.Error("failed to record click",
			zap.String("code", req.Code),
			zap.Error(err),
		)

		return nil, mapDomainError(err, "short url not found")
	}

	resp := &RedirectResponse{Status: http.StatusFound}
	resp.Headers.Location = result.RedirectURL

	return resp, nil
}

// TrackClick records a click submitted by an instrumented client, with
// visitor identity and custom tracking data the redirect path cannot
// carry.
func (h *ClickHandler) TrackClick(ctx context.Context, req *TrackClickRequest) (*TrackClickResponse, error) {
	record, err := h.urls.FindActiveByCode(ctx, req.Code)
	if err != nil {
		return nil, mapDomainError(err, "short url not found")
	}

	meta := RequestMetaFromContext(ctx)

	result, err := h.pipeline.RecordClick(ctx, ingest.Submission{
		URLID:      record.ID,
		RemoteIP:   meta.RemoteIP,
		Headers:    meta.Headers,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
		VisitorID:  req.Body.VisitorID,
		SessionID:  req.Body.SessionID,
		Custom:     req.Body.Custom,
		LoadTimeMs: req.Body.LoadTimeMs,
	})
	if err != nil {
		return nil, mapDomainError(err, "short url not found")
	}

	resp := &TrackClickResponse{}
	resp.Body.EventID = result.Event.ID
	resp.Body.IsUnique = result.Event.IsUnique
	resp.Body.IsBot = result.Event.IsBot
	resp.Body.TotalClicks = result.Stats.TotalClicks
	resp.Body.UniqueClicks = result.Stats.UniqueClicks
	resp.Body.LastClickAt = result.Stats.LastClickedAt

	return resp, nil
}

// mapDomainError turns domain sentinels into huma status errors.
func mapDomainError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, clickstream.ErrNotFound):
		return huma.Error404NotFound(notFoundMsg)
	case errors.Is(err, clickstream.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("internal server error")
	}
}
