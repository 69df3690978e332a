package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"

	"github.com/jackc/pgx/v5"
)

var _ endpoint.Store = (*EndpointRepo)(nil)

type EndpointRepo struct {
	db *DB
}

func NewEndpointRepo(db *DB) *EndpointRepo { return &EndpointRepo{db: db} }

const (
	qEpColumns = `
id, user_id, name, url, method, headers, body, expected_status,
interval_sec, timeout_ms, active, max_response_time_ms, failure_threshold,
created_at, updated_at`

	qEpGetByID = `
SELECT ` + qEpColumns + `
FROM endpoints
WHERE id = $1;
`

	qEpListActive = `
SELECT ` + qEpColumns + `
FROM endpoints
WHERE active = TRUE
ORDER BY id;
`

	qEpListByUser = `
SELECT ` + qEpColumns + `
FROM endpoints
WHERE user_id = $1
ORDER BY id;
`
)

func scanEndpoint(row pgx.Row, e *endpoint.Endpoint) error {
	var (
		intervalSec int
		timeoutMs   int64
		headersRaw  []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Name,
		&e.URL,
		&e.Method,
		&headersRaw,
		&e.Body,
		&e.ExpectedStatus,
		&intervalSec,
		&timeoutMs,
		&e.Active,
		&e.MaxResponseTime,
		&e.FailureThreshold,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return endpoint.ErrNotFound
		}
		return fmt.Errorf("scan endpoint: %w", err)
	}
	e.Interval = time.Duration(intervalSec) * time.Second
	e.Timeout = time.Duration(timeoutMs) * time.Millisecond
	if len(headersRaw) > 0 {
		if err := json.Unmarshal(headersRaw, &e.Headers); err != nil {
			return fmt.Errorf("decode headers: %w", err)
		}
	}
	return nil
}

func (r *EndpointRepo) GetByID(ctx context.Context, id int64) (*endpoint.Endpoint, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var e endpoint.Endpoint
	if err := scanEndpoint(r.db.Pool.QueryRow(ctx, qEpGetByID, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EndpointRepo) ListActive(ctx context.Context) ([]*endpoint.Endpoint, error) {
	return r.list(ctx, qEpListActive)
}

func (r *EndpointRepo) ListByUser(ctx context.Context, userID int64) ([]*endpoint.Endpoint, error) {
	return r.list(ctx, qEpListByUser, userID)
}

func (r *EndpointRepo) list(ctx context.Context, q string, args ...any) ([]*endpoint.Endpoint, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var out []*endpoint.Endpoint
	for rows.Next() {
		var e endpoint.Endpoint
		if err := scanEndpoint(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
