package core

import (
	"context"

	"github.com/dkeye/Nearby/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// UserStore is the durable whole-table user record store.
// There is no partial update: callers always read-modify-write the full set.
type UserStore interface {
	// Load returns every record in stored order. A store that was never
	// written returns an empty table.
	Load(ctx context.Context) ([]domain.UserRecord, error)
	// Save replaces the whole table.
	Save(ctx context.Context, records []domain.UserRecord) error
	Close() error
}
