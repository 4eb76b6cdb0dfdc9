package accessevents

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.AccessEvent) (*models.AccessEvent, error)
	// ListRecent returns up to limit of the vault's newest events, oldest
	// first.
	ListRecent(ctx context.Context, vaultID string, limit int) ([]models.AccessEvent, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
	// AnnotateUser appends suffix to the UserName stored on every event
	// recorded by userID. Events with no stored name become "User"+suffix.
	AnnotateUser(ctx context.Context, userID, suffix string) (int64, error)
}
