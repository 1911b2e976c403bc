package urldir

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/clickstream-go/internal/clickstream"
)

// PostgresDirectory is a PostgreSQL implementation of Directory.
type PostgresDirectory struct {
	pool         *pgxpool.Pool
	generateCode CodeGenerator
}

// NewPostgresDirectory creates a new PostgreSQL-backed URL directory.
func NewPostgresDirectory(pool *pgxpool.Pool, generator CodeGenerator) *PostgresDirectory {
	return &PostgresDirectory{pool: pool, generateCode: generator}
}

const recordColumns = `
	id, short_code, original_url, owner_id, is_active, expires_at,
	created_at, total_clicks, unique_clicks, last_clicked_at
`

func (p *PostgresDirectory) Create(ctx context.Context, originalURL, ownerID string, expiresAt *time.Time) (*URLRecord, error) {
	record := &URLRecord{
		ID:          uuid.NewString(),
		ShortCode:   p.generateCode(),
		OriginalURL: originalURL,
		OwnerID:     ownerID,
		IsActive:    true,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO short_urls (id, short_code, original_url, owner_id, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
	`

	_, err := p.pool.Exec(ctx, query,
		record.ID,
		record.ShortCode,
		record.OriginalURL,
		nullableString(record.OwnerID),
		record.ExpiresAt,
		record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (p *PostgresDirectory) FindActiveByID(ctx context.Context, id string) (*URLRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM short_urls WHERE id = $1`

	return p.activeRecord(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresDirectory) FindActiveByCode(ctx context.Context, code string) (*URLRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM short_urls WHERE short_code = $1`

	return p.activeRecord(p.pool.QueryRow(ctx, query, code))
}

func (p *PostgresDirectory) activeRecord(row pgx.Row) (*URLRecord, error) {
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clickstream.ErrNotFound
		}

		return nil, err
	}

	if !record.IsActive || record.Expired(time.Now()) {
		return nil, clickstream.ErrNotFound
	}

	return record, nil
}

// IncrementCounters runs a single read-modify-write UPDATE so concurrent
// increments never lose updates.
func (p *PostgresDirectory) IncrementCounters(ctx context.Context, id string, unique bool, at time.Time) (clickstream.URLStats, error) {
	query := `
		UPDATE short_urls
		SET total_clicks = total_clicks + 1,
		    unique_clicks = unique_clicks + $2,
		    last_clicked_at = $3
		WHERE id = $1
		RETURNING total_clicks, unique_clicks, last_clicked_at
	`

	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}

	var stats clickstream.URLStats

	err := p.pool.QueryRow(ctx, query, id, uniqueDelta, at).
		Scan(&stats.TotalClicks, &stats.UniqueClicks, &stats.LastClickedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clickstream.URLStats{}, clickstream.ErrNotFound
		}

		return clickstream.URLStats{}, err
	}

	return stats, nil
}

func (p *PostgresDirectory) ListByOwner(ctx context.Context, ownerID string) ([]*URLRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM short_urls WHERE owner_id = $1 ORDER BY created_at`

	rows, err := p.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*URLRecord, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*URLRecord, error) {
	var (
		record  URLRecord
		ownerID *string
	)

	err := row.Scan(
		&record.ID,
		&record.ShortCode,
		&record.OriginalURL,
		&ownerID,
		&record.IsActive,
		&record.ExpiresAt,
		&record.CreatedAt,
		&record.Stats.TotalClicks,
		&record.Stats.UniqueClicks,
		&record.Stats.LastClickedAt,
	)
	if err != nil {
		return nil, err
	}

	if ownerID != nil {
		record.OwnerID = *ownerID
	}

	return &record, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
