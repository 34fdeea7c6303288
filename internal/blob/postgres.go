package blob

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

// Postgres stores blobs as bytea rows and serves them under
// <baseURL>/blobs/<id>.
type Postgres struct {
	pool    *pgxpool.Pool
	baseURL string
}

func NewPostgres(pool *pgxpool.Pool, baseURL string) *Postgres {
	return &Postgres{pool: pool, baseURL: baseURL}
}

func (p *Postgres) Upload(ctx context.Context, key string, data []byte, contentType string, progress ProgressFunc) (Result, error) {
	total := int64(len(data))
	if progress != nil {
		progress(0, total)
	}

	id := uuid.NewString()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO blobs (id, object_key, content_type, size_bytes, data)
		VALUES ($1, $2, $3, $4, $5)`,
		id, key, contentType, total, data,
	)
	if err != nil {
		return Result{}, fmt.Errorf("insert blob: %w", err)
	}

	if progress != nil {
		progress(total, total)
	}
	return Result{URL: fmt.Sprintf("%s/blobs/%s", p.baseURL, id)}, nil
}

// Get fetches a stored blob by id for serving.
func (p *Postgres) Get(ctx context.Context, id string) (contentType string, data []byte, err error) {
	row := p.pool.QueryRow(ctx,
		`SELECT content_type, data FROM blobs WHERE id = $1`, id)
	if err := row.Scan(&contentType, &data); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil, domain.ErrBlobNotFound
		}
		return "", nil, fmt.Errorf("get blob: %w", err)
	}
	return contentType, data, nil
}
