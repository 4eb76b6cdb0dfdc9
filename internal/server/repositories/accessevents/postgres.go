// Package accessevents persists the access history of vaults.
package accessevents

import (
	"context"
	"database/sql"
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

func (r *PostgresRepository) Create(ctx context.Context, e *models.AccessEvent) (*models.AccessEvent, error) {
	query :=
		`INSERT INTO access_events (vault_id, user_id, user_name, event_type, occurred_at, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		e.VaultID, e.UserID, e.UserName, string(e.EventType), e.Timestamp,
		dbx.NullFloat(e.Latitude), dbx.NullFloat(e.Longitude)).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, vaultID string, limit int) ([]models.AccessEvent, error) {
	query :=
		`SELECT id, vault_id, user_id, user_name, event_type, occurred_at, latitude, longitude FROM (
		     SELECT * FROM access_events
		     WHERE vault_id = $1
		     ORDER BY occurred_at DESC
		     LIMIT $2
		 ) recent
		 ORDER BY occurred_at ASC`

	rows, err := r.db.QueryContext(ctx, query, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.AccessEvent{}
	for rows.Next() {
		var (
			e        models.AccessEvent
			typ      string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.VaultID, &e.UserID, &e.UserName, &typ, &e.Timestamp, &lat, &lon); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if e.EventType, err = models.ParseEventType(typ); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Latitude, e.Longitude = dbx.FloatPtr(lat), dbx.FloatPtr(lon)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// anonymousUserName stands in for events stored without a display name.
const anonymousUserName = "User"

func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_events WHERE vault_id = $1`, vaultID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) AnnotateUser(ctx context.Context, userID, suffix string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_events SET user_name = COALESCE(NULLIF(user_name, ''), $3) || $2 WHERE user_id = $1`,
		userID, suffix, anonymousUserName)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
