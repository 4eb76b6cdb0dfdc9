// Package threatevents persists threat events raised by the decision engines.
package threatevents

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

func (r *PostgresRepository) Create(ctx context.Context, e *models.ThreatEvent) (*models.ThreatEvent, error) {
	query :=
		`INSERT INTO threat_events (vault_id, type, severity, score, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		e.VaultID, e.Type, string(e.Severity), e.Score, e.Description, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListByVault(ctx context.Context, vaultID string, limit int) ([]*models.ThreatEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, vault_id, type, severity, score, description, created_at FROM threat_events
		 WHERE vault_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.ThreatEvent{}
	for rows.Next() {
		var (
			e   models.ThreatEvent
			sev string
		)
		if err := rows.Scan(&e.ID, &e.VaultID, &e.Type, &sev, &e.Score, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if e.Severity, err = models.ParseThreatLevel(sev); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM threat_events WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
