package session

import (
	"context"
	"time"
)

// Repository stores session snapshots.
type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	GetByToken(ctx context.Context, token string) (*Snapshot, error)
	// Update overwrites the narrative part of the snapshot and touches UpdatedAt.
	Update(ctx context.Context, s *Snapshot) error
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes every snapshot that expired before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
