// Package documents persists the server-side records of encrypted blobs.
// The blobs themselves live in object storage under StorageKey.
package documents

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

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) (*models.Document, error) {
	query :=
		`INSERT INTO documents (vault_id, storage_key)
		 VALUES ($1, $2)
		 RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, d.VaultID, d.StorageKey).Scan(&d.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByVault(ctx context.Context, vaultID string) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, vault_id, storage_key FROM documents WHERE vault_id = $1 ORDER BY id`, vaultID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Document{}
	for rows.Next() {
		d := &models.Document{}
		if err := rows.Scan(&d.ID, &d.VaultID, &d.StorageKey); err != nil {
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
