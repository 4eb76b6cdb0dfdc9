// Package emergency persists emergency-access requests and their pass codes.
package emergency

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

const columns = `id, vault_id, requester_id, reason, urgency, state, approver_id, pass_code_hash,
	expires_at, consumed_at, decided_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.EmergencyAccessRequest) (*models.EmergencyAccessRequest, error) {
	query :=
		`INSERT INTO emergency_requests (vault_id, requester_id, reason, urgency, state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, e.VaultID, e.RequesterID, e.Reason, string(e.Urgency), string(e.State)).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, args ...any) (*models.EmergencyAccessRequest, error) {
	var (
		e                          models.EmergencyAccessRequest
		urgency, state             string
		approver, hash             sql.NullString
		expires, consumed, decided sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM emergency_requests WHERE `+where, args...).Scan(
		&e.ID, &e.VaultID, &e.RequesterID, &e.Reason, &urgency, &state, &approver, &hash,
		&expires, &consumed, &decided, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if e.Urgency, err = models.ParseUrgency(urgency); err != nil {
		return nil, err
	}
	if e.State, err = models.ParseRequestState(state); err != nil {
		return nil, err
	}
	e.ApproverID, e.PassCodeHash = approver.String, hash.String
	e.ExpiresAt, e.ConsumedAt, e.DecidedAt = dbx.TimePtr(expires), dbx.TimePtr(consumed), dbx.TimePtr(decided)
	return &e, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.EmergencyAccessRequest, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByPassCodeHash(ctx context.Context, vaultID, hash string) (*models.EmergencyAccessRequest, error) {
	return r.get(ctx, `vault_id = $1 AND pass_code_hash = $2`, vaultID, hash)
}

func (r *PostgresRepository) Approve(ctx context.Context, id, approverID, passCodeHash string, expiresAt, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE emergency_requests
		 SET state = 'approved', approver_id = $2, pass_code_hash = $3, expires_at = $4, decided_at = $5
		 WHERE id = $1 AND state = 'pending'`, id, approverID, passCodeHash, expiresAt, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) Deny(ctx context.Context, id, approverID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE emergency_requests SET state = 'denied', approver_id = $2, decided_at = $3
		 WHERE id = $1 AND state = 'pending'`, id, approverID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE emergency_requests SET consumed_at = $2
		 WHERE id = $1 AND state = 'approved' AND consumed_at IS NULL AND expires_at > $2`, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emergency_requests WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) DeleteByRequester(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emergency_requests WHERE requester_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
