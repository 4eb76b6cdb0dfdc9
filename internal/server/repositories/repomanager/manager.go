package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
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

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Vaults(db dbx.DBTX) vaults.Repository
	Documents(db dbx.DBTX) documents.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Roles(db dbx.DBTX) roles.Repository
	Messages(db dbx.DBTX) messages.Repository
	AccessEvents(db dbx.DBTX) accessevents.Repository
	Nominees(db dbx.DBTX) nominees.Repository
	DualKey(db dbx.DBTX) dualkey.Repository
	Transfers(db dbx.DBTX) transfers.Repository
	Emergency(db dbx.DBTX) emergency.Repository
	ThreatEvents(db dbx.DBTX) threatevents.Repository
	Decisions(db dbx.DBTX) decisions.Repository
}
