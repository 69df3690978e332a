package endpoint

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("endpoint not found")

type Store interface {
	GetByID(ctx context.Context, id int64) (*Endpoint, error)
	ListActive(ctx context.Context) ([]*Endpoint, error)
	ListByUser(ctx context.Context, userID int64) ([]*Endpoint, error)
}
