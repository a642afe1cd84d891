package share

import (
	"context"

	"navidrive/internal/domain/drive"
)

// Repository defines the contract for share storage operations
type Repository interface {
	Create(ctx context.Context, share *Share) error
	GetByID(ctx context.Context, id string) (*Share, error)
	GetByToken(ctx context.Context, token string) (*Share, error)
	List(ctx context.Context) ([]Share, error)
	GetByTarget(ctx context.Context, target drive.Ref) ([]Share, error)
	Delete(ctx context.Context, id string) error
	// DeleteByTarget removes the shares of items that no longer exist.
	DeleteByTarget(ctx context.Context, target drive.Ref) error
	IncrementDownloads(ctx context.Context, id string) error
}
