package documents

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Document) (*models.Document, error)
	ListByVault(ctx context.Context, vaultID string) ([]*models.Document, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
}
