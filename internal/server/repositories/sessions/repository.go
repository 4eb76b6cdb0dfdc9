package sessions

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.VaultSession) (*models.VaultSession, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
