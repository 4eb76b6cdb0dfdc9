// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accessevents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/decisions"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/dualkey"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/emergency"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/nominees"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/threatevents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/transfers"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/vaults"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Vaults(db dbx.DBTX) vaults.Repository {
	return vaults.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Roles(db dbx.DBTX) roles.Repository {
	return roles.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Messages(db dbx.DBTX) messages.Repository {
	return messages.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) AccessEvents(db dbx.DBTX) accessevents.Repository {
	return accessevents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Nominees(db dbx.DBTX) nominees.Repository {
	return nominees.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) DualKey(db dbx.DBTX) dualkey.Repository {
	return dualkey.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Transfers(db dbx.DBTX) transfers.Repository {
	return transfers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Emergency(db dbx.DBTX) emergency.Repository {
	return emergency.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) ThreatEvents(db dbx.DBTX) threatevents.Repository {
	return threatevents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Decisions(db dbx.DBTX) decisions.Repository {
	return decisions.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
