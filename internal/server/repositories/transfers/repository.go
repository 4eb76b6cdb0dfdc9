package transfers

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.VaultTransferRequest) (*models.VaultTransferRequest, error)
	GetByID(ctx context.Context, id string) (*models.VaultTransferRequest, error)
	GetByTokenHash(ctx context.Context, hash string) (*models.VaultTransferRequest, error)
	CountSince(ctx context.Context, vaultID string, since time.Time) (int, error)
	// Complete moves a pending request to completed; ErrorInvalidState
	// otherwise.
	Complete(ctx context.Context, id, newOwnerID string, at time.Time) error
	// Deny moves a pending request to denied; ErrorInvalidState otherwise.
	Deny(ctx context.Context, id string) error
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
}
