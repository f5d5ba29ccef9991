package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dunamismax/pageflow/internal/domain"
	_ "github.com/lib/pq"
)

const conversionLogSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_logs (
	request_id TEXT PRIMARY KEY,
	route TEXT NOT NULL DEFAULT '',
	output_format TEXT NOT NULL,
	input_count INTEGER NOT NULL,
	input_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	units INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversion_logs_created_at_idx ON conversion_logs (created_at DESC);
`

const conversionLogColumns = `request_id, route, output_format, input_count, input_bytes, output_bytes, units, status, error, duration_ms, created_at`

type PostgresConversionLogStore struct {
	db *sql.DB
}

func NewPostgresConversionLogStore(ctx context.Context, dsn string) (*PostgresConversionLogStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresConversionLogStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresConversionLogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, conversionLogSchemaSQL); err != nil {
		return fmt.Errorf("ensure conversion_logs schema: %w", err)
	}
	return nil
}

func (s *PostgresConversionLogStore) Close() error {
	return s.db.Close()
}

func (s *PostgresConversionLogStore) Create(ctx context.Context, entry domain.ConversionLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversion_logs (`+conversionLogColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.RequestID,
		string(entry.Route),
		string(entry.OutputFormat),
		entry.InputCount,
		entry.InputBytes,
		entry.OutputBytes,
		entry.Units,
		entry.Status,
		entry.Error,
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion log: %w", err)
	}
	return nil
}

func (s *PostgresConversionLogStore) Get(ctx context.Context, requestID string) (domain.ConversionLog, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+conversionLogColumns+`
		 FROM conversion_logs
		 WHERE request_id = $1`,
		requestID,
	)

	entry, err := scanConversionLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ConversionLog{}, false, nil
		}
		return domain.ConversionLog{}, false, fmt.Errorf("query conversion log: %w", err)
	}
	return entry, true, nil
}

func (s *PostgresConversionLogStore) Recent(ctx context.Context, limit int) ([]domain.ConversionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+conversionLogColumns+`
		 FROM conversion_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent conversion logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ConversionLog
	for rows.Next() {
		entry, err := scanConversionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion log: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversion logs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversionLog(row rowScanner) (domain.ConversionLog, error) {
	var (
		entry        domain.ConversionLog
		route        string
		outputFormat string
	)
	if err := row.Scan(
		&entry.RequestID,
		&route,
		&outputFormat,
		&entry.InputCount,
		&entry.InputBytes,
		&entry.OutputBytes,
		&entry.Units,
		&entry.Status,
		&entry.Error,
		&entry.DurationMS,
		&entry.CreatedAt,
	); err != nil {
		return domain.ConversionLog{}, err
	}
	entry.Route = domain.Route(route)
	entry.OutputFormat = domain.OutputFormat(outputFormat)
	return entry, nil
}
