package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/dermacheck/internal/repository"
)

// DocumentRepo stores documents as jsonb rows keyed by (collection, key).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) Get(ctx context.Context, collection, key string) (repository.Document, error) {
	var fields map[string]any
	err := r.pool.QueryRow(ctx,
		"SELECT fields FROM documents WHERE collection = $1 AND key = $2",
		collection, key,
	).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return repository.Document(fields), nil
}

func (r *DocumentRepo) Set(ctx context.Context, collection, key string, fields repository.Document) error {
	query := `
		INSERT INTO documents (collection, key, fields, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (collection, key)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`

	_, err := r.pool.Exec(ctx, query, collection, key, map[string]any(fields))
	return err
}

func (r *DocumentRepo) Update(ctx context.Context, collection, key string, changed repository.Document) error {
	query := `
		UPDATE documents
		SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND key = $2`

	tag, err := r.pool.Exec(ctx, query, collection, key, map[string]any(changed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no document to update: %s/%s", collection, key)
	}
	return nil
}

func (r *DocumentRepo) Count(ctx context.Context, collection, field, value string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM documents WHERE collection = $1 AND fields->>$2 = $3",
		collection, field, value,
	).Scan(&n)
	return n, err
}

var _ repository.DocumentStore = (*DocumentRepo)(nil)
