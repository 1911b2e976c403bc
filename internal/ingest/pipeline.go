// Package ingest turns raw click submissions into enriched, persisted
// click events and keeps the owning URL's counters current.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/messaging"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// TopicClickRecorded is the bus topic for ingested clicks.
const TopicClickRecorded = "click.recorded"

// ClickRecorded is the event published after a click is persisted and
// counted. The realtime layer consumes it to refresh short-window stats.
type ClickRecorded struct {
	EventID     string    `json:"eventId"`
	URLID       string    `json:"urlId"`
	ShortCode   string    `json:"shortCode"`
	OwnerID     string    `json:"ownerId,omitempty"`
	CountryCode string    `json:"countryCode,omitempty"`
	IsUnique    bool      `json:"isUnique"`
	IsBot       bool      `json:"isBot"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// Submission is a raw click as the redirect handler sees it.
type Submission struct {
	URLID string

	RemoteIP string
	Headers  http.Header

	UserAgent string
	Referrer  string

	VisitorID string
	SessionID string

	Custom map[string]any

	LoadTimeMs *float64

	// At defaults to time.Now when zero.
	At time.Time
}

// Result is what RecordClick hands back to the redirect path.
type Result struct {
	Event       *clickstream.ClickEvent
	RedirectURL string
	Stats       clickstream.URLStats
}

// Pipeline records clicks: normalize, resolve, enrich, persist, count,
// announce.
type Pipeline struct {
	urls         urldir.Directory
	events       eventstore.Store
	geo          enrich.GeoResolver
	owners       urldir.OwnerStatsSink
	publishClick messaging.Publish[ClickRecorded]
	logger       *zap.Logger
}

// NewPipeline creates an ingestion pipeline. owners may be nil when no
// per-owner statistics sink is configured.
func NewPipeline(
	urls urldir.Directory,
	events eventstore.Store,
	geo enrich.GeoResolver,
	owners urldir.OwnerStatsSink,
	publishClick messaging.Publish[ClickRecorded],
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		urls:         urls,
		events:       events,
		geo:          geo,
		owners:       owners,
		publishClick: publishClick,
		logger:       logger,
	}
}

// RecordClick runs the ingestion steps in order. Enrichment failures are
// absorbed and leave the corresponding derived field absent; a failed
// event write stops the operation before any counter is touched.
func (p *Pipeline) RecordClick(ctx context.Context, sub Submission) (*Result, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	ip := enrich.ClientIP(sub.RemoteIP, sub.Headers)

	record, err := p.urls.FindActiveByID(ctx, sub.URLID)
	if err != nil {
		if errors.Is(err, clickstream.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: resolve url: %w", clickstream.ErrStorage, err)
	}

	unique, err := p.events.Exists(ctx, record.ID, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: uniqueness check: %w", clickstream.ErrStorage, err)
	}

	event := p.buildEvent(ctx, record, sub, ip, !unique)

	if err = p.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("%w: persist click: %w", clickstream.ErrStorage, err)
	}

	stats, err := p.urls.IncrementCounters(ctx, record.ID, event.IsUnique, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: increment counters: %w", clickstream.ErrStorage, err)
	}

	p.notifyOwner(ctx, record.OwnerID)
	p.announce(ctx, record, event)

	return &Result{
		Event:       event,
		RedirectURL: record.OriginalURL,
		Stats:       stats,
	}, nil
}

func validate(sub Submission) error {
	if sub.URLID == "" {
		return fmt.Errorf("%w: missing url id", clickstream.ErrValidation)
	}

	if len(sub.UserAgent) > clickstream.MaxUserAgentLength {
		return fmt.Errorf("%w: user-agent exceeds %d bytes", clickstream.ErrValidation, clickstream.MaxUserAgentLength)
	}

	if len(sub.Referrer) > clickstream.MaxReferrerLength {
		return fmt.Errorf("%w: referrer exceeds %d bytes", clickstream.ErrValidation, clickstream.MaxReferrerLength)
	}

	return nil
}

// buildEvent constructs the fully enriched event. Enrichment runs in a
// fixed order before the event is ever handed to the store.
func (p *Pipeline) buildEvent(ctx context.Context, record *urldir.URLRecord, sub Submission, ip string, unique bool) *clickstream.ClickEvent {
	at := sub.At
	if at.IsZero() {
		at = time.Now()
	}

	device := enrich.ClassifyDevice(sub.UserAgent)

	isBot := enrich.IsBot(sub.UserAgent)
	if isBot {
		device.Type = clickstream.DeviceBot
	}

	event := &clickstream.ClickEvent{
		ID:         clickstream.NewEventID(),
		URLID:      record.ID,
		VisitorID:  sub.VisitorID,
		IP:         ip,
		UserAgent:  sub.UserAgent,
		Referrer:   sub.Referrer,
		SessionID:  sub.SessionID,
		Custom:     clickstream.NormalizeCustomData(sub.Custom),
		Device:     device,
		Campaign:   enrich.ExtractCampaign(sub.Referrer),
		IsBot:      isBot,
		IsUnique:   unique,
		LoadTimeMs: sub.LoadTimeMs,
		CreatedAt:  at,
	}

	location, err := p.geo.Resolve(ctx, ip)
	if err != nil {
		p.logger.Warn("geo lookup failed",
			zap.String("ip", ip),
			zap.Error(err),
		)
	} else {
		event.Location = location
	}

	return event
}

func (p *Pipeline) notifyOwner(ctx context.Context, ownerID string) {
	if p.owners == nil || ownerID == "" {
		return
	}

	if err := p.owners.AddClicks(ctx, ownerID, 1); err != nil {
		p.logger.Warn("owner stats sink failed",
			zap.String("ownerId", ownerID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) announce(ctx context.Context, record *urldir.URLRecord, event *clickstream.ClickEvent) {
	if p.publishClick == nil {
		return
	}

	announcement := &ClickRecorded{
		EventID:    event.ID,
		URLID:      record.ID,
		ShortCode:  record.ShortCode,
		OwnerID:    record.OwnerID,
		IsUnique:   event.IsUnique,
		IsBot:      event.IsBot,
		RecordedAt: event.CreatedAt,
	}
	if event.Location != nil {
		announcement.CountryCode = event.Location.CountryCode
	}

	if err := p.publishClick(ctx, announcement); err != nil {
		p.logger.Error("failed to publish click recorded event",
			zap.String("eventId", event.ID),
			zap.Error(err),
		)
	}
}
