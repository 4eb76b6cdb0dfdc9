// Package decisions persists the audit log of engine decisions.
package decisions

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

func (r *PostgresRepository) Create(ctx context.Context, d *models.DecisionLog) (*models.DecisionLog, error) {
	query :=
		`INSERT INTO decision_logs (request_id, vault_id, engine, outcome, score, confidence, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		d.RequestID, d.VaultID, d.Engine, d.Outcome, d.Score, d.Confidence, d.Reason, d.CreatedAt).Scan(&d.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.DecisionLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, vault_id, engine, outcome, score, confidence, reason, created_at
		 FROM decision_logs WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.DecisionLog{}
	for rows.Next() {
		d := &models.DecisionLog{}
		if err := rows.Scan(&d.ID, &d.RequestID, &d.VaultID, &d.Engine, &d.Outcome, &d.Score,
			&d.Confidence, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM decision_logs WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
