package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// DeletionSummary reports what an account deletion removed.
type DeletionSummary struct {
	UserID string
	// PurgedVaults are the vaults the user owned; they are gone with all
	// their records.
	PurgedVaults []string
	// LeftVaults are vaults the user was only a nominee of.
	LeftVaults []string
	// Rows counts deleted rows per table.
	Rows map[string]int64
	// AnnotatedEvents is how many of the user's access events were kept
	// and annotated.
	AnnotatedEvents int64
}

func newDeletionSummary(userID string) *DeletionSummary {
	return &DeletionSummary{
		UserID:       userID,
		PurgedVaults: []string{},
		LeftVaults:   []string{},
		Rows:         map[string]int64{},
	}
}

// DeletionEngine removes accounts and everything they own, and cleans up
// vaults left without a valid owner.
type DeletionEngine struct {
	base
}

func NewDeletionEngine(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*DeletionEngine, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &DeletionEngine{base: b}, nil
}

// purgeVault deletes a vault and every record that references it. It
// returns the storage keys of the vault's documents.
func (e *DeletionEngine) purgeVault(ctx context.Context, tx dbx.DBTX, vaultID string, rows map[string]int64) ([]string, error) {
	m := e.repomanager

	docs, err := m.Documents(tx).ListByVault(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.StorageKey != "" {
			keys = append(keys, d.StorageKey)
		}
	}

	steps := []struct {
		table string
		del   func(context.Context, string) (int64, error)
	}{
		{"documents", m.Documents(tx).DeleteByVault},
		{"vault_sessions", m.Sessions(tx).DeleteByVault},
		{"access_events", m.AccessEvents(tx).DeleteByVault},
		{"nominees", m.Nominees(tx).DeleteByVault},
		{"dual_key_requests", m.DualKey(tx).DeleteByVault},
		{"transfer_requests", m.Transfers(tx).DeleteByVault},
		{"emergency_requests", m.Emergency(tx).DeleteByVault},
		{"threat_events", m.ThreatEvents(tx).DeleteByVault},
		{"decision_logs", m.Decisions(tx).DeleteByVault},
	}
	for _, s := range steps {
		n, err := s.del(ctx, vaultID)
		if err != nil {
			return nil, fmt.Errorf("delete %s of vault %s: %w", s.table, vaultID, err)
		}
		rows[s.table] += n
	}

	if err := m.Vaults(tx).Delete(ctx, vaultID); err != nil {
		return nil, fmt.Errorf("delete vault %s: %w", vaultID, err)
	}
	rows["vaults"]++
	return keys, nil
}

// DeleteAccount removes userID in one transaction. Vaults the user owns are
// purged; on vaults the user was only a nominee of, the nominee record is
// removed and the user's past access events are kept under the name
// "<name> (Account Deleted)". A missing user is ErrorNotFound; any other
// failure rolls everything back and is reported as ErrorTransactionFailure.
// Document blobs of purged vaults are removed after commit on a best-effort
// basis.
func (e *DeletionEngine) DeleteAccount(ctx context.Context, userID string) (*DeletionSummary, error) {
	summary := newDeletionSummary(userID)
	var (
		keys    []string
		missing bool
	)

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		m := e.repomanager

		user, err := m.Users(tx).GetByID(ctx, userID)
		if err != nil {
			missing = errors.Is(err, common.ErrorNotFound)
			return err
		}

		owned, err := m.Vaults(tx).ListByOwner(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list owned vaults: %w", err)
		}
		ownedIDs := make(map[string]struct{}, len(owned))
		for _, v := range owned {
			k, err := e.purgeVault(ctx, tx, v.ID, summary.Rows)
			if err != nil {
				return err
			}
			keys = append(keys, k...)
			ownedIDs[v.ID] = struct{}{}
			summary.PurgedVaults = append(summary.PurgedVaults, v.ID)
		}

		memberships, err := m.Nominees(tx).ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list nominee records: %w", err)
		}
		for _, n := range memberships {
			if _, ok := ownedIDs[n.VaultID]; !ok {
				summary.LeftVaults = append(summary.LeftVaults, n.VaultID)
			}
		}
		n, err := m.Nominees(tx).DeleteByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete nominee records: %w", err)
		}
		summary.Rows["nominees"] += n

		annotated, err := m.AccessEvents(tx).AnnotateUser(ctx, user.ID, common.DeletedAccountSuffix)
		if err != nil {
			return fmt.Errorf("annotate access events: %w", err)
		}
		summary.AnnotatedEvents = annotated

		steps := []struct {
			table string
			del   func(context.Context, string) (int64, error)
		}{
			{"user_roles", m.Roles(tx).DeleteByUser},
			{"vault_sessions", m.Sessions(tx).DeleteByUser},
			{"chat_messages", m.Messages(tx).DeleteBySender},
			{"emergency_requests", m.Emergency(tx).DeleteByRequester},
			{"dual_key_requests", m.DualKey(tx).DeleteByRequester},
		}
		for _, s := range steps {
			n, err := s.del(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("delete %s: %w", s.table, err)
			}
			summary.Rows[s.table] += n
		}

		if err := m.Users(tx).Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		summary.Rows["users"]++
		return nil
	})
	if err != nil {
		if missing {
			return nil, common.ErrorNotFound
		}
		metrics.AccountDeletionsTotal.WithLabelValues("failed").Inc()
		e.log.Error(ctx, "account deletion rolled back", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorTransactionFailure, err)
	}

	metrics.AccountDeletionsTotal.WithLabelValues("deleted").Inc()
	for table, n := range summary.Rows {
		metrics.CascadeRowsDeleted.WithLabelValues(table).Add(float64(n))
	}
	e.log.Info(ctx, "account deleted",
		"user_id", userID, "purged_vaults", len(summary.PurgedVaults), "left_vaults", len(summary.LeftVaults))

	e.purgeBlobs(ctx, keys)
	return summary, nil
}

// purgeBlobs removes document blobs after the rows are gone. Failures are
// logged and counted; the database is already consistent.
func (e *DeletionEngine) purgeBlobs(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := e.blobs.Delete(ctx, keys); err != nil {
		metrics.BlobPurgesTotal.WithLabelValues("failed").Inc()
		e.log.Warn(ctx, "blob purge failed", "keys", len(keys), "error", err)
		return
	}
	metrics.BlobPurgesTotal.WithLabelValues("deleted").Inc()
}
