package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// ReconcileOrphans purges non-system vaults whose owner no longer exists,
// or whose owner is a stale account carrying current's external identity
// under a different id. Vaults owned by current are never touched. Each
// vault is purged in its own transaction; it returns how many were removed.
func (e *DeletionEngine) ReconcileOrphans(ctx context.Context, current *models.User) (int, error) {
	orphans, err := e.repomanager.Vaults(e.db).ListOrphaned(ctx, current.ID, current.ExternalID)
	if err != nil {
		return 0, fmt.Errorf("list orphaned vaults: %w", err)
	}

	purged := 0
	for _, v := range orphans {
		if v.IsSystem || v.OwnerID == current.ID {
			continue
		}

		rows := map[string]int64{}
		var keys []string
		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			keys, err = e.purgeVault(ctx, tx, v.ID, rows)
			return err
		})
		if err != nil {
			return purged, fmt.Errorf("%w: %w", common.ErrorTransactionFailure, err)
		}

		purged++
		metrics.OrphanVaultsPurged.Inc()
		e.log.Info(ctx, "orphaned vault purged", "vault_id", v.ID, "owner_id", v.OwnerID)
		e.purgeBlobs(ctx, keys)
	}
	return purged, nil
}
