// Package dualkey persists dual-key unlock requests.
package dualkey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `id, vault_id, requester_id, state, ml_score, decision_method, approver_id, created_at, approved_at, denied_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*models.DualKeyRequest, error) {
	var (
		r                    models.DualKeyRequest
		state, method        string
		approver             sql.NullString
		approvedAt, deniedAt sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.VaultID, &r.RequesterID, &state, &r.MLScore, &method, &approver,
		&r.CreatedAt, &approvedAt, &deniedAt); err != nil {
		return nil, err
	}
	var err error
	if r.State, err = models.ParseRequestState(state); err != nil {
		return nil, err
	}
	if r.DecisionMethod, err = models.ParseDecisionMethod(method); err != nil {
		return nil, err
	}
	r.ApproverID = approver.String
	r.ApprovedAt, r.DeniedAt = dbx.TimePtr(approvedAt), dbx.TimePtr(deniedAt)
	return &r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.DualKeyRequest) (*models.DualKeyRequest, error) {
	query :=
		`INSERT INTO dual_key_requests (vault_id, requester_id, state)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, req.VaultID, req.RequesterID, string(req.State)).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.DualKeyRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM dual_key_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) ListPending(ctx context.Context, vaultID string) ([]*models.DualKeyRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM dual_key_requests WHERE vault_id = $1 AND state = 'pending' ORDER BY created_at`, vaultID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.DualKeyRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, id string, res Resolution) error {
	var approvedAt, deniedAt sql.NullTime
	switch res.State {
	case models.StateApproved:
		approvedAt = sql.NullTime{Time: res.At, Valid: true}
	case models.StateDenied:
		deniedAt = sql.NullTime{Time: res.At, Valid: true}
	default:
		return fmt.Errorf("%w: cannot resolve to %q", common.ErrorInvalidState, res.State)
	}

	query :=
		`UPDATE dual_key_requests
		 SET state = $2, ml_score = $3, decision_method = $4, approver_id = $5, approved_at = $6, denied_at = $7
		 WHERE id = $1 AND state = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, string(res.State), res.Score, string(res.Method),
		dbx.NullString(res.ApproverID), approvedAt, deniedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(result) == 0 {
		return common.ErrorInvalidState
	}
	return nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dual_key_requests WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) DeleteByRequester(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dual_key_requests WHERE requester_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
