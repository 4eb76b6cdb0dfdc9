package roles

import "context"

type Repository interface {
	Grant(ctx context.Context, userID, role string) error
	HasRole(ctx context.Context, userID, role string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
