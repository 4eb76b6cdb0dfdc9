// Package services contains the decision engines of the server: threat
// monitoring, dual-key approval, vault transfer, emergency access, nominee
// management and the account deletion cascade. Engines are built with
// constructor injection and share one set of scorers.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/clock"
	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/scoring"
)

// recentEventsLimit bounds the access history loaded for one decision.
const recentEventsLimit = 500

const (
	engineDualKey   = "dual_key"
	engineTransfer  = "transfer"
	engineEmergency = "emergency"
)

type base struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	clock       clock.Clock
	log         logging.Logger
	scorer      scoring.Scorer
	hasher      *cryptox.Hasher
	blobs       blobstore.Deleter
}

// Option customizes an engine.
type Option func(*base)

func WithClock(c clock.Clock) Option {
	return func(b *base) { b.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(b *base) { b.log = l }
}

// WithBlobStore sets where document blobs of purged vaults are removed.
// Without it blobs are left in place.
func WithBlobStore(d blobstore.Deleter) Option {
	return func(b *base) { b.blobs = d }
}

func newBase(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts []Option) (base, error) {
	if db == nil || m == nil || cfg == nil {
		return base{}, common.ErrorConfiguration
	}
	hasher, err := cryptox.NewHasher([]byte(cfg.SecretKey))
	if err != nil {
		return base{}, fmt.Errorf("%w: %v", common.ErrorConfiguration, err)
	}

	b := base{
		db:          db,
		repomanager: m,
		config:      cfg,
		clock:       clock.Real(),
		log:         logging.Nop{},
		scorer:      scoring.New(cfg.Policy, cfg.Location()),
		hasher:      hasher,
		blobs:       blobstore.Nop{},
	}
	for _, o := range opts {
		o(&b)
	}
	if b.clock == nil || b.log == nil || b.blobs == nil {
		return base{}, common.ErrorConfiguration
	}
	return b, nil
}

func (b *base) recentEvents(ctx context.Context, q dbx.DBTX, vaultID string) ([]models.AccessEvent, error) {
	events, err := b.repomanager.AccessEvents(q).ListRecent(ctx, vaultID, recentEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("load access events: %w", err)
	}
	return events, nil
}

func (b *base) isAdmin(ctx context.Context, q dbx.DBTX, userID string) (bool, error) {
	ok, err := b.repomanager.Roles(q).HasRole(ctx, userID, common.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return ok, nil
}

// requireOwner loads the vault and checks that userID owns it. When
// allowAdmin is set an admin role holder passes too.
func (b *base) requireOwner(ctx context.Context, q dbx.DBTX, vaultID, userID string, allowAdmin bool) (*models.Vault, error) {
	v, err := b.repomanager.Vaults(q).GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if v.OwnerID == userID {
		return v, nil
	}
	if allowAdmin {
		admin, err := b.isAdmin(ctx, q, userID)
		if err != nil {
			return nil, err
		}
		if admin {
			return v, nil
		}
	}
	return nil, common.ErrorForbidden
}

// requireMember checks that userID owns the vault, holds a live nominee
// record on it, or is an admin.
func (b *base) requireMember(ctx context.Context, q dbx.DBTX, vaultID, userID string) (*models.Vault, error) {
	v, err := b.requireOwner(ctx, q, vaultID, userID, true)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, common.ErrorForbidden) {
		return nil, err
	}

	list, err := b.repomanager.Nominees(q).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load nominees: %w", err)
	}
	for _, n := range list {
		if n.VaultID == vaultID && n.Status != models.NomineeRevoked {
			return b.repomanager.Vaults(q).GetByID(ctx, vaultID)
		}
	}
	return nil, common.ErrorForbidden
}
