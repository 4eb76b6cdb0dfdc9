package dualkey

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// Resolution is the terminal write of a dual-key request.
type Resolution struct {
	State      models.RequestState
	Score      float64
	Method     models.DecisionMethod
	ApproverID string
	At         time.Time
}

type Repository interface {
	Create(ctx context.Context, r *models.DualKeyRequest) (*models.DualKeyRequest, error)
	GetByID(ctx context.Context, id string) (*models.DualKeyRequest, error)
	ListPending(ctx context.Context, vaultID string) ([]*models.DualKeyRequest, error)
	// Resolve writes res only while the request is still pending; a request
	// already resolved yields ErrorInvalidState.
	Resolve(ctx context.Context, id string, res Resolution) error
	DeleteByVault(ctx context.Context, vaultID string) (int64, error)
	DeleteByRequester(ctx context.Context, userID string) (int64, error)
}
