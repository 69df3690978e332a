package result

import (
	"context"
	"errors"
)

// ErrNoPriorData marks an endpoint that has never been checked.
var ErrNoPriorData = errors.New("no prior check result")

type Store interface {
	Create(ctx context.Context, r *Result) error
	Latest(ctx context.Context, endpointID int64) (*Result, error)
	ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*Result, error)
	AggregateStats(ctx context.Context, endpointID int64, windowHours int) (*Stats, error)
}
