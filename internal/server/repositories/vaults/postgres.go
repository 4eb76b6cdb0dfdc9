// Package vaults persists vault records.
package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `v.id, v.name, v.owner_id, v.is_system, v.created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.Vault) (*models.Vault, error) {
	query :=
		`INSERT INTO vaults (name, owner_id, is_system)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, v.Name, v.OwnerID, v.IsSystem).Scan(&v.ID, &v.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Vault, error) {
	query := `SELECT ` + columns + ` FROM vaults v WHERE v.id = $1`

	v := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Name, &v.OwnerID, &v.IsSystem, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Vault, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Vault{}
	for rows.Next() {
		v := &models.Vault{}
		if err := rows.Scan(&v.ID, &v.Name, &v.OwnerID, &v.IsSystem, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Vault, error) {
	return r.list(ctx, `SELECT `+columns+` FROM vaults v WHERE v.owner_id = $1 ORDER BY v.created_at`, ownerID)
}

func (r *PostgresRepository) ListOrphaned(ctx context.Context, currentUserID, externalID string) ([]*models.Vault, error) {
	query :=
		`SELECT ` + columns + ` FROM vaults v
		 LEFT JOIN users u ON u.id = v.owner_id
		 WHERE NOT v.is_system
		   AND v.owner_id <> $1
		   AND (u.id IS NULL OR u.external_id = $2)
		 ORDER BY v.created_at`
	return r.list(ctx, query, currentUserID, externalID)
}

func (r *PostgresRepository) SetOwner(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE vaults SET owner_id = $2 WHERE id = $1`, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaults WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}
