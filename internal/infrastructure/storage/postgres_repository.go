package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

const resultsTable = "extraction_results"

const schema = `CREATE TABLE IF NOT EXISTS extraction_results (
    run_id        TEXT        NOT NULL,
    pipeline      TEXT        NOT NULL,
    article_id    TEXT        NOT NULL,
    success       BOOLEAN     NOT NULL,
    error_message TEXT,
    items         JSONB       NOT NULL DEFAULT '[]',
    arguments     JSONB       NOT NULL DEFAULT '[]',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (pipeline, article_id)
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists extraction results into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ResultRepository = (*PostgresRepository)(nil)

// Open connects to Postgres with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the results table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ProcessedIDs returns the ids among ids that already have a successful
// result for variant.
func (r *PostgresRepository) ProcessedIDs(ctx context.Context, variant domain.Variant, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := psql.
		Select("article_id").
		From(resultsTable).
		Where(sq.Eq{"pipeline": string(variant), "success": true}).
		Where("article_id = ANY(?)", pq.Array(ids)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build processed query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// SaveResults upserts every result of a run in one transaction.
func (r *PostgresRepository) SaveResults(ctx context.Context, runID string, results []domain.ExtractionResult) error {
	if r.db == nil || len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for _, res := range results {
		if err := upsertResult(ctx, tx, runID, res); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

func upsertResult(ctx context.Context, tx *sql.Tx, runID string, res domain.ExtractionResult) error {
	items, err := json.Marshal(nonNil(res.Items))
	if err != nil {
		return fmt.Errorf("marshal items of %s: %w", res.ArticleID, err)
	}
	args := res.Arguments
	if args == nil {
		args = []domain.ArgumentRecord{}
	}
	arguments, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments of %s: %w", res.ArticleID, err)
	}

	query, values, err := psql.
		Insert(resultsTable).
		Columns("run_id", "pipeline", "article_id", "success", "error_message", "items", "arguments").
		Values(runID, string(res.Variant), res.ArticleID, res.Success,
			sql.NullString{String: res.ErrorMessage, Valid: res.ErrorMessage != ""},
			string(items), string(arguments)).
		Suffix(`ON CONFLICT (pipeline, article_id) DO UPDATE
              SET run_id = EXCLUDED.run_id,
                  success = EXCLUDED.success,
                  error_message = EXCLUDED.error_message,
                  items = EXCLUDED.items,
                  arguments = EXCLUDED.arguments,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("upsert result %s: %w", res.ArticleID, err)
	}
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
