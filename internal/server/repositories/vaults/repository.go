package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Vault) (*models.Vault, error)
	GetByID(ctx context.Context, id string) (*models.Vault, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Vault, error)
	// ListOrphaned returns non-system vaults not owned by currentUserID whose
	// owner row is missing or shares externalID under a different id.
	ListOrphaned(ctx context.Context, currentUserID, externalID string) ([]*models.Vault, error)
	SetOwner(ctx context.Context, id, ownerID string) error
	Delete(ctx context.Context, id string) error
}
