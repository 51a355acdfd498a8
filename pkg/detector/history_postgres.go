package detector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresHistory mirrors performance records into a Postgres table for
// retention beyond the process lifetime.
type PostgresHistory struct {
	db *sql.DB
}

// OpenPostgresHistory connects and ensures the table exists.
func OpenPostgresHistory(dsn string) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	p := &PostgresHistory{db: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresHistory) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS performance_records (
			id         UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			model      TEXT NOT NULL,
			precision_score DOUBLE PRECISION NOT NULL,
			recall_score    DOUBLE PRECISION NOT NULL,
			f1_score        DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_performance_records_created_at
			ON performance_records (created_at DESC)`)
	if err != nil {
		return fmt.Errorf("ensure performance schema: %w", err)
	}
	return nil
}

// Insert appends one record.
func (p *PostgresHistory) Insert(ctx context.Context, rec PerformanceRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO performance_records (id, created_at, model, precision_score, recall_score, f1_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Timestamp, rec.Model, rec.Precision, rec.Recall, rec.F1)
	if err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (p *PostgresHistory) Recent(ctx context.Context, limit int) ([]PerformanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, created_at, model, precision_score, recall_score, f1_score
		FROM performance_records
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer rows.Close()

	var out []PerformanceRecord
	for rows.Next() {
		var rec PerformanceRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Model,
			&rec.Precision, &rec.Recall, &rec.F1); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresHistory) Close() error { return p.db.Close() }
