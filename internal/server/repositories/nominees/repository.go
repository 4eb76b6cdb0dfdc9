package nominees

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.Nominee) (*models.Nominee, error)
	GetByID(ctx context.Context, id string) (*models.Nominee, error)
	GetByInviteTokenHash(ctx context.Context, hash string) (*models.Nominee, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Nominee, error)
	// Accept binds a pending invitation to userID. Returns ErrorInvalidState
	// when the invitation is no longer pending.
	Accept(ctx context.Context, id, userID string) error
	// UpdateStatus moves a nominee from one status to another, failing with
	// ErrorInvalidState if the current status is not from.
	UpdateStatus(ctx context.Context, id string, from, to models.NomineeStatus) error
	// ActivateForUser makes the user's accepted or inactive nominee record
	// on the vault active. Returns the number of rows changed.
	ActivateForUser(ctx context.Context, vaultID, userID string) (int64, error)
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
