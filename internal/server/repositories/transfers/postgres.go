// Package transfers persists vault ownership-transfer requests.
package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `id, vault_id, requested_by, new_owner_name, new_owner_email, new_owner_phone, reason, state,
	ml_score, recommendation, token_hash, threat_index, new_owner_id, created_at, completed_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.VaultTransferRequest) (*models.VaultTransferRequest, error) {
	query :=
		`INSERT INTO transfer_requests (vault_id, requested_by, new_owner_name, new_owner_email, new_owner_phone,
		     reason, state, ml_score, recommendation, token_hash, threat_index, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		t.VaultID, t.RequestedBy, t.NewOwner.Name, t.NewOwner.Email, t.NewOwner.Phone,
		t.Reason, string(t.State), t.MLScore, string(t.Recommendation), t.TokenHash, t.ThreatIndex, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg any) (*models.VaultTransferRequest, error) {
	var (
		t          models.VaultTransferRequest
		state, rec string
		newOwnerID sql.NullString
		completed  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM transfer_requests WHERE `+where, arg).Scan(
		&t.ID, &t.VaultID, &t.RequestedBy, &t.NewOwner.Name, &t.NewOwner.Email, &t.NewOwner.Phone, &t.Reason,
		&state, &t.MLScore, &rec, &t.TokenHash, &t.ThreatIndex, &newOwnerID, &t.CreatedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if t.State, err = models.ParseRequestState(state); err != nil {
		return nil, err
	}
	if t.Recommendation, err = models.ParseRecommendation(rec); err != nil {
		return nil, err
	}
	t.NewOwnerID = newOwnerID.String
	t.CompletedAt = dbx.TimePtr(completed)
	return &t, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultTransferRequest, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*models.VaultTransferRequest, error) {
	return r.get(ctx, `token_hash = $1`, hash)
}

func (r *PostgresRepository) CountSince(ctx context.Context, vaultID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfer_requests WHERE vault_id = $1 AND created_at >= $2`, vaultID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id, newOwnerID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transfer_requests SET state = 'completed', new_owner_id = $2, completed_at = $3
		 WHERE id = $1 AND state = 'pending'`, id, newOwnerID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) Deny(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transfer_requests SET state = 'denied' WHERE id = $1 AND state = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transfer_requests WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
