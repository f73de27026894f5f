package vectorstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/raghavvag/lucidfiles/internal/apperror"
)

//go:embed migrations/*.sql
var pgvectorMigrations embed.FS

// PgvectorStore stores points in Postgres using the pgvector extension and
// cosine distance (`<=>`), via pgxpool and pgvector-go's Vector wire type.
type PgvectorStore struct {
	pool *pgxpool.Pool
}

// NewPgvectorStore connects to dsn and returns a store. Call
// EnsureCollection once at startup to run migrations before use.
func NewPgvectorStore(ctx context.Context, dsn string) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperror.New(apperror.KindConfigurationFailure, fmt.Errorf("connect to postgres: %w", err))
	}
	return &PgvectorStore{pool: pool}, nil
}

func (p *PgvectorStore) EnsureCollection(ctx context.Context, dimensions int) error {
	sourceDriver, err := iofs.New(pgvectorMigrations, "migrations")
	if err != nil {
		return apperror.New(apperror.KindConfigurationFailure, fmt.Errorf("load migration source: %w", err))
	}

	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return apperror.New(apperror.KindConfigurationFailure, fmt.Errorf("create migration driver: %w", err))
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return apperror.New(apperror.KindConfigurationFailure, fmt.Errorf("create migrate instance: %w", err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return apperror.New(apperror.KindConfigurationFailure, fmt.Errorf("apply migrations: %w", err))
	}
	return nil
}

func (p *PgvectorStore) Upsert(ctx context.Context, points []Point) error {
	batch := make([][]any, len(points))
	for i, pt := range points {
		payload, err := json.Marshal(pt.Payload)
		if err != nil {
			return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("marshal payload for %q: %w", pt.ID, err))
		}
		filePath, _ := pt.Payload[PayloadFilePath].(string)
		chunkIndex := 0
		if ci, ok := pt.Payload["chunk_index"].(int); ok {
			chunkIndex = ci
		}
		batch[i] = []any{pt.ID, filePath, chunkIndex, pgvector.NewVector(pt.Vector), payload}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("begin upsert tx: %w", err))
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO points (id, file_path, chunk_index, vector, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				file_path = EXCLUDED.file_path,
				chunk_index = EXCLUDED.chunk_index,
				vector = EXCLUDED.vector,
				payload = EXCLUDED.payload`,
			row[0], row[1], row[2], row[3], row[4])
		if err != nil {
			return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("upsert point %v: %w", row[0], err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("commit upsert tx: %w", err))
	}
	return nil
}

func (p *PgvectorStore) DeleteByFile(ctx context.Context, filePath string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM points WHERE file_path = $1`, filePath)
	if err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("delete by file %q: %w", filePath, err))
	}
	return nil
}

func (p *PgvectorStore) Search(ctx context.Context, query []float32, topK int) ([]ScoredPoint, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, payload, 1 - (vector <=> $1) AS score
		FROM points
		ORDER BY vector <=> $1
		LIMIT $2`,
		pgvector.NewVector(query), topK)
	if err != nil {
		return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("search: %w", err))
	}
	defer rows.Close()

	var hits []ScoredPoint
	for rows.Next() {
		var id string
		var rawPayload []byte
		var score float64
		if err := rows.Scan(&id, &rawPayload, &score); err != nil {
			return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("scan search row: %w", err))
		}
		var payload map[string]any
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("unmarshal payload: %w", err))
		}
		hits = append(hits, ScoredPoint{ID: id, Score: score, Payload: payload})
	}
	return hits, rows.Err()
}

func (p *PgvectorStore) CountByFile(ctx context.Context, filePath string) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM points WHERE file_path = $1`, filePath).Scan(&count)
	if err != nil {
		return 0, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("count by file %q: %w", filePath, err))
	}
	return count, nil
}

func (p *PgvectorStore) ListByFile(ctx context.Context, filePath string) ([]ScoredPoint, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, payload FROM points WHERE file_path = $1`, filePath)
	if err != nil {
		return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("list by file %q: %w", filePath, err))
	}
	defer rows.Close()

	var out []ScoredPoint
	for rows.Next() {
		var id string
		var rawPayload []byte
		if err := rows.Scan(&id, &rawPayload); err != nil {
			return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("scan list row: %w", err))
		}
		var payload map[string]any
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("unmarshal payload: %w", err))
		}
		out = append(out, ScoredPoint{ID: id, Payload: payload})
	}
	return out, rows.Err()
}

func (p *PgvectorStore) Close() error {
	p.pool.Close()
	return nil
}
