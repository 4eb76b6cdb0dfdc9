package messages

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.ChatMessage) (*models.ChatMessage, error)
	DeleteBySender(ctx context.Context, senderID string) (int64, error)
}
