package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/scoring"
)

// recentThreatEventsLimit is how many stored threat events a report carries.
const recentThreatEventsLimit = 20

// ThreatReport is the threat picture of one vault.
type ThreatReport struct {
	VaultID    string
	Evaluation scoring.Evaluation
	Threats    []models.DetectedThreat
	Daily      []models.DailyThreatMetric
	Events     []*models.ThreatEvent
}

// ThreatEngine records access events and reports on a vault's threat level.
type ThreatEngine struct {
	base
}

func NewThreatEngine(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*ThreatEngine, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &ThreatEngine{base: b}, nil
}

// RecordEvent appends an access event performed by userID. The event is
// stamped with the acting user's display name and, when unset, the current
// time.
func (e *ThreatEngine) RecordEvent(ctx context.Context, userID string, ev models.AccessEvent) (*models.AccessEvent, error) {
	if _, err := models.ParseEventType(string(ev.EventType)); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if (ev.Latitude == nil) != (ev.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be given together", common.ErrorValidation)
	}
	if _, err := e.requireMember(ctx, e.db, ev.VaultID, userID); err != nil {
		return nil, err
	}

	user, err := e.repomanager.Users(e.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ev.UserID = user.ID
	ev.UserName = user.FullName
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock.Now()
	}

	created, err := e.repomanager.AccessEvents(e.db).Create(ctx, &ev)
	if err != nil {
		return nil, fmt.Errorf("record access event: %w", err)
	}
	metrics.AccessEventsTotal.WithLabelValues(string(ev.EventType)).Inc()
	return created, nil
}

// Assess builds the threat report of a vault for one of its members.
func (e *ThreatEngine) Assess(ctx context.Context, vaultID, userID string) (*ThreatReport, error) {
	if _, err := e.requireMember(ctx, e.db, vaultID, userID); err != nil {
		return nil, err
	}

	events, err := e.recentEvents(ctx, e.db, vaultID)
	if err != nil {
		return nil, err
	}

	stored, err := e.repomanager.ThreatEvents(e.db).ListByVault(ctx, vaultID, recentThreatEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("load threat events: %w", err)
	}

	eval := e.scorer.Evaluate(events, scoring.DeletionPointsVaultThreat)
	e.log.Debug(ctx, "vault assessed",
		"vault_id", vaultID, "level", eval.Threat.Level, "score", eval.Composite)

	return &ThreatReport{
		VaultID:    vaultID,
		Evaluation: eval,
		Threats:    e.scorer.DetectThreats(events, e.clock.Now()),
		Daily:      e.scorer.DailyMetrics(events),
		Events:     stored,
	}, nil
}
