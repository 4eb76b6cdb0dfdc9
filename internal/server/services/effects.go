package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// Effect is a side effect produced by a decision. Engines apply effects in
// the same transaction as the state change that caused them.
type Effect interface {
	Apply(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX) error
}

// RaiseThreat records a threat event on a vault.
type RaiseThreat struct {
	Event models.ThreatEvent
}

func (e RaiseThreat) Apply(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX) error {
	ev := e.Event
	if _, err := m.ThreatEvents(tx).Create(ctx, &ev); err != nil {
		return fmt.Errorf("raise %s: %w", ev.Type, err)
	}
	metrics.ThreatEventsTotal.WithLabelValues(ev.Type, string(ev.Severity)).Inc()
	return nil
}

// LogDecision appends an entry to the decision audit log.
type LogDecision struct {
	Log models.DecisionLog
}

func (e LogDecision) Apply(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX) error {
	d := e.Log
	if _, err := m.Decisions(tx).Create(ctx, &d); err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

func applyEffects(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, effects []Effect) error {
	for _, e := range effects {
		if err := e.Apply(ctx, m, tx); err != nil {
			return err
		}
	}
	return nil
}
