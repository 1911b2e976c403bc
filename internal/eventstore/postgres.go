package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/clickstream-go/internal/clickstream"
)

// PostgresStore is a PostgreSQL implementation of Store. Derived facts
// (location, device, campaign, custom data) are stored as JSONB so the
// persisted shape round-trips through export unchanged.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed event store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Insert(ctx context.Context, event *clickstream.ClickEvent) error {
	location, err := marshalNullable(event.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}

	device, err := json.Marshal(event.Device)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}

	campaign, err := marshalNullable(event.Campaign)
	if err != nil {
		return fmt.Errorf("marshal campaign: %w", err)
	}

	var custom []byte
	if len(event.Custom) > 0 {
		if custom, err = json.Marshal(event.Custom); err != nil {
			return fmt.Errorf("marshal custom data: %w", err)
		}
	}

	query := `
		INSERT INTO click_events (
			id, url_id, visitor_id, ip, user_agent, referrer, session_id,
			custom, location, device, campaign, is_bot, is_unique,
			load_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = p.pool.Exec(ctx, query,
		event.ID,
		event.URLID,
		nullableString(event.VisitorID),
		event.IP,
		nullableString(event.UserAgent),
		nullableString(event.Referrer),
		nullableString(event.SessionID),
		custom,
		location,
		device,
		campaign,
		event.IsBot,
		event.IsUnique,
		event.LoadTimeMs,
		event.CreatedAt,
	)

	return err
}

func (p *PostgresStore) Exists(ctx context.Context, urlID, ip string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM click_events WHERE url_id = $1 AND ip = $2)`

	var exists bool

	err := p.pool.QueryRow(ctx, query, urlID, ip).Scan(&exists)

	return exists, err
}

func (p *PostgresStore) Query(ctx context.Context, filter Filter) ([]*clickstream.ClickEvent, error) {
	var (
		conditions []string
		args       []any
	)

	addCondition := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.URLID != "" {
		addCondition("url_id = $%d", filter.URLID)
	}

	if len(filter.URLIDs) > 0 {
		addCondition("url_id = ANY($%d)", filter.URLIDs)
	}

	if !filter.From.IsZero() {
		addCondition("created_at >= $%d", filter.From)
	}

	if !filter.To.IsZero() {
		addCondition("created_at < $%d", filter.To)
	}

	if filter.ExcludeBots {
		conditions = append(conditions, "NOT is_bot")
	}

	query := `
		SELECT id, url_id, visitor_id, ip, user_agent, referrer, session_id,
		       custom, location, device, campaign, is_bot, is_unique,
		       load_time_ms, created_at
		FROM click_events
	`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at"
	if filter.NewestFirst {
		query += " DESC"
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query click events: %w", err)
	}
	defer rows.Close()

	events := make([]*clickstream.ClickEvent, 0)

	for rows.Next() {
		var (
			event                         clickstream.ClickEvent
			visitorID, ua, referrer, sess *string
			custom, location, campaign    []byte
			device                        []byte
		)

		err = rows.Scan(
			&event.ID, &event.URLID, &visitorID, &event.IP, &ua, &referrer,
			&sess, &custom, &location, &device, &campaign, &event.IsBot,
			&event.IsUnique, &event.LoadTimeMs, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}

		event.VisitorID = derefString(visitorID)
		event.UserAgent = derefString(ua)
		event.Referrer = derefString(referrer)
		event.SessionID = derefString(sess)

		if err = unmarshalInto(custom, &event.Custom); err != nil {
			return nil, fmt.Errorf("decode custom data: %w", err)
		}

		if err = unmarshalInto(location, &event.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}

		if err = unmarshalInto(device, &event.Device); err != nil {
			return nil, fmt.Errorf("decode device: %w", err)
		}

		if err = unmarshalInto(campaign, &event.Campaign); err != nil {
			return nil, fmt.Errorf("decode campaign: %w", err)
		}

		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click events: %w", err)
	}

	return events, nil
}

func (p *PostgresStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64

	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM click_events WHERE created_at < $1`, cutoff,
	).Scan(&count)

	return count, err
}

func (p *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM click_events
		WHERE id IN (
			SELECT id FROM click_events
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
	`

	tag, err := p.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func unmarshalInto[T any](data []byte, target *T) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}
