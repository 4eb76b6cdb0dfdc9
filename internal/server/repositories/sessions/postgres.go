// Package sessions persists open vault sessions.
package sessions

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.VaultSession) (*models.VaultSession, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO vault_sessions (vault_id, user_id) VALUES ($1, $2) RETURNING id`,
		s.VaultID, s.UserID).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	return r.delete(ctx, `DELETE FROM vault_sessions WHERE vault_id = $1`, vaultID)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.delete(ctx, `DELETE FROM vault_sessions WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) delete(ctx context.Context, query, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
