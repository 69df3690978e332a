package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmkor-dev/uptimed/internal/domain/result"

	"github.com/jackc/pgx/v5"
)

var _ result.Store = (*ResultRepo)(nil)

type ResultRepo struct{ db *DB }

func NewResultRepo(db *DB) *ResultRepo { return &ResultRepo{db: db} }

const (
	qResInsert = `
INSERT INTO check_results
  (endpoint_id, user_id, status, response_time_ms, status_code, error_message,
   response_headers, response_body, checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id;
`

	qResColumns = `
id, endpoint_id, user_id, status, response_time_ms, status_code, error_message,
response_headers, response_body, checked_at`

	qResLatest = `
SELECT ` + qResColumns + `
FROM check_results
WHERE endpoint_id = $1
ORDER BY checked_at DESC
LIMIT 1;
`

	qResByEndpoint = `
SELECT ` + qResColumns + `
FROM check_results
WHERE endpoint_id = $1
ORDER BY checked_at DESC
LIMIT $2;
`

	qResAggregate = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'success'),
       COALESCE(AVG(response_time_ms), 0)
FROM check_results
WHERE endpoint_id = $1
  AND checked_at > NOW() - ($2 * INTERVAL '1 hour');
`
)

func (r *ResultRepo) Create(ctx context.Context, res *result.Result) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var headersRaw []byte
	if len(res.ResponseHeaders) > 0 {
		b, err := json.Marshal(res.ResponseHeaders)
		if err != nil {
			return fmt.Errorf("encode headers: %w", err)
		}
		headersRaw = b
	}

	var errMsg *string
	if res.ErrorMessage != "" {
		errMsg = &res.ErrorMessage
	}
	var body *string
	if res.ResponseBody != "" {
		body = &res.ResponseBody
	}

	return r.db.Pool.QueryRow(ctx, qResInsert,
		res.EndpointID, res.UserID, string(res.Status), res.ResponseTime,
		res.StatusCode, errMsg, headersRaw, body, res.CheckedAt,
	).Scan(&res.ID)
}

func scanResult(row pgx.Row, res *result.Result) error {
	var (
		status     string
		errMsg     *string
		headersRaw []byte
		body       *string
	)
	if err := row.Scan(
		&res.ID,
		&res.EndpointID,
		&res.UserID,
		&status,
		&res.ResponseTime,
		&res.StatusCode,
		&errMsg,
		&headersRaw,
		&body,
		&res.CheckedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result.ErrNoPriorData
		}
		return fmt.Errorf("scan result: %w", err)
	}
	res.Status = result.Status(status)
	if errMsg != nil {
		res.ErrorMessage = *errMsg
	}
	if body != nil {
		res.ResponseBody = *body
	}
	if len(headersRaw) > 0 {
		if err := json.Unmarshal(headersRaw, &res.ResponseHeaders); err != nil {
			return fmt.Errorf("decode headers: %w", err)
		}
	}
	return nil
}

func (r *ResultRepo) Latest(ctx context.Context, endpointID int64) (*result.Result, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var res result.Result
	if err := scanResult(r.db.Pool.QueryRow(ctx, qResLatest, endpointID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepo) ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*result.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qResByEndpoint, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]*result.Result, 0, limit)
	for rows.Next() {
		var res result.Result
		if err := scanResult(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ResultRepo) AggregateStats(ctx context.Context, endpointID int64, windowHours int) (*result.Stats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s result.Stats
	if err := r.db.Pool.QueryRow(ctx, qResAggregate, endpointID, windowHours).
		Scan(&s.Total, &s.Successes, &s.AvgResponseTime); err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	if s.Total > 0 {
		s.UptimePercent = float64(s.Successes) / float64(s.Total) * 100
	}
	return &s, nil
}
