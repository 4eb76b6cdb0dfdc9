package threatevents

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.ThreatEvent) (*models.ThreatEvent, error)
	ListByVault(ctx context.Context, vaultID string, limit int) ([]*models.ThreatEvent, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
}
