package emergency

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.EmergencyAccessRequest) (*models.EmergencyAccessRequest, error)
	GetByID(ctx context.Context, id string) (*models.EmergencyAccessRequest, error)
	GetByPassCodeHash(ctx context.Context, vaultID, hash string) (*models.EmergencyAccessRequest, error)
	// Approve and Deny only act on pending requests; ErrorInvalidState
	// otherwise.
	Approve(ctx context.Context, id, approverID, passCodeHash string, expiresAt, at time.Time) error
	Deny(ctx context.Context, id, approverID string, at time.Time) error
	// Consume marks a usable pass code as used. A code already consumed or
	// expired at now yields ErrorInvalidState.
	Consume(ctx context.Context, id string, now time.Time) error
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
	DeleteByRequester(ctx context.Context, userID string) (int64, error)
}
