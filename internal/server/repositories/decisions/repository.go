package decisions

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.DecisionLog) (*models.DecisionLog, error)
	ListByRequest(ctx context.Context, requestID string) ([]*models.DecisionLog, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
}
