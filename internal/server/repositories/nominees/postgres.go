// Package nominees persists vault nominees: people invited to share access
// to a vault they do not own.
package nominees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `id, vault_id, user_id, name, email, invited_by_user_id, status, invite_token_hash, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNominee(s scanner) (*models.Nominee, error) {
	var (
		n      models.Nominee
		userID sql.NullString
		status string
	)
	if err := s.Scan(&n.ID, &n.VaultID, &userID, &n.Name, &n.Email, &n.InvitedByUserID,
		&status, &n.InviteTokenHash, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.UserID = userID.String
	st, err := models.ParseNomineeStatus(status)
	if err != nil {
		return nil, err
	}
	n.Status = st
	return &n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, n *models.Nominee) (*models.Nominee, error) {
	query :=
		`INSERT INTO nominees (vault_id, user_id, name, email, invited_by_user_id, status, invite_token_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		n.VaultID, dbx.NullString(n.UserID), n.Name, n.Email, n.InvitedByUserID,
		string(n.Status), n.InviteTokenHash).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg any) (*models.Nominee, error) {
	n, err := scanNominee(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM nominees WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if errors.Is(err, common.ErrorValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Nominee, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByInviteTokenHash(ctx context.Context, hash string) (*models.Nominee, error) {
	return r.get(ctx, `invite_token_hash = $1`, hash)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Nominee, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM nominees WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Nominee{}
	for rows.Next() {
		n, err := scanNominee(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Accept(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nominees SET user_id = $2, status = 'accepted' WHERE id = $1 AND status = 'pending'`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.NomineeStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nominees SET status = $3 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) ActivateForUser(ctx context.Context, vaultID, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nominees SET status = 'active'
		 WHERE vault_id = $1 AND user_id = $2 AND status IN ('accepted', 'inactive')`, vaultID, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nominees WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nominees WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
