package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

const (
	transferHighThreatPoints   = 30.0
	transferMediumThreatPoints = 15.0
	transferFrequencyPoints    = 20.0
	transferNightPoints        = 15.0
	transferUnknownOwnerPoints = 10.0
	transferKeywordPoints      = 25.0

	threatHighTransfer    = "high_threat_transfer"
	threatOwnershipChange = "ownership_change"
)

var transferKeywords = []string{"urgent", "emergency", "hack", "compromise", "breach"}

// TransferInput describes a requested ownership change.
type TransferInput struct {
	VaultID     string
	RequesterID string
	NewOwner    models.NewOwner
	Reason      string
}

type transferSignals struct {
	Level       models.ThreatLevel
	RecentCount int
	Hour        int
	OwnerKnown  bool
	Reason      string
}

type transferAssessment struct {
	Score          float64
	Recommendation models.Recommendation
	Factors        []string
}

// assessTransfer scores a transfer request. Too many recent requests force
// a deny regardless of the score; alarming wording in the reason forces at
// least a review.
func assessTransfer(p config.Policy, s transferSignals) transferAssessment {
	var (
		score      float64
		factors    []string
		forceDeny  bool
		wantReview bool
	)

	switch s.Level {
	case models.ThreatHigh:
		score += transferHighThreatPoints
		factors = append(factors, "vault threat level high")
	case models.ThreatMedium:
		score += transferMediumThreatPoints
		factors = append(factors, "vault threat level medium")
	}

	if s.RecentCount > p.TransferMaxRecent {
		score += transferFrequencyPoints
		forceDeny = true
		factors = append(factors, fmt.Sprintf("%d transfer requests in window", s.RecentCount))
	}

	if s.Hour >= 0 && s.Hour < p.TransferNightEndHour {
		score += transferNightPoints
		factors = append(factors, "requested at night")
	}

	if !s.OwnerKnown {
		score += transferUnknownOwnerPoints
		factors = append(factors, "new owner not registered")
	}

	reason := strings.ToLower(s.Reason)
	for _, kw := range transferKeywords {
		if strings.Contains(reason, kw) {
			score += transferKeywordPoints
			wantReview = true
			factors = append(factors, "reason mentions "+kw)
			break
		}
	}

	score = math.Max(0, math.Min(score, 100))

	rec := models.RecommendApprove
	switch {
	case forceDeny:
		rec = models.RecommendDeny
	case score >= p.TransferDenyScore:
		rec = models.RecommendDeny
	case score >= p.TransferReviewScore:
		rec = models.RecommendReview
	case wantReview:
		rec = models.RecommendReview
	}

	return transferAssessment{Score: score, Recommendation: rec, Factors: factors}
}

// transferEffects are the audit and threat records of a new request.
func transferEffects(p config.Policy, req *models.VaultTransferRequest) []Effect {
	effects := []Effect{}
	if req.ThreatIndex >= p.HighThreatTransferIndex {
		severity := models.ThreatMedium
		if req.ThreatIndex >= p.TransferDenyScore {
			severity = models.ThreatHigh
		}
		effects = append(effects, RaiseThreat{Event: models.ThreatEvent{
			VaultID:     req.VaultID,
			Type:        threatHighTransfer,
			Severity:    severity,
			Score:       req.ThreatIndex,
			Description: fmt.Sprintf("transfer to %s scored %.0f", req.NewOwner.Email, req.ThreatIndex),
			CreatedAt:   req.CreatedAt,
		}})
	}
	return effects
}

// TransferEngine scores and executes vault ownership transfers.
type TransferEngine struct {
	base
}

func NewTransferEngine(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*TransferEngine, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &TransferEngine{base: b}, nil
}

// Request scores a transfer requested by the vault owner and persists it.
// A deny recommendation stores the request as denied and no token is
// returned. Otherwise the request stays pending and the single-use
// transfer token is returned; only its hash is stored.
func (e *TransferEngine) Request(ctx context.Context, in TransferInput) (*models.VaultTransferRequest, string, error) {
	if strings.TrimSpace(in.NewOwner.Email) == "" && strings.TrimSpace(in.NewOwner.Name) == "" {
		return nil, "", fmt.Errorf("%w: new owner is required", common.ErrorValidation)
	}
	if _, err := e.requireOwner(ctx, e.db, in.VaultID, in.RequesterID, false); err != nil {
		return nil, "", err
	}

	now := e.clock.Now()
	p := e.scorer.Policy()

	events, err := e.recentEvents(ctx, e.db, in.VaultID)
	if err != nil {
		return nil, "", err
	}
	recent, err := e.repomanager.Transfers(e.db).CountSince(ctx, in.VaultID, now.Add(-p.TransferWindow))
	if err != nil {
		return nil, "", fmt.Errorf("count transfers: %w", err)
	}
	known := false
	if email := strings.TrimSpace(in.NewOwner.Email); email != "" {
		if known, err = e.repomanager.Users(e.db).ExistsByEmail(ctx, email); err != nil {
			return nil, "", fmt.Errorf("look up new owner: %w", err)
		}
	}

	a := assessTransfer(p, transferSignals{
		Level:       e.scorer.AssessThreat(events).Level,
		RecentCount: recent,
		Hour:        now.In(e.config.Location()).Hour(),
		OwnerKnown:  known,
		Reason:      in.Reason,
	})

	token := cryptox.NewToken()
	req := &models.VaultTransferRequest{
		VaultID:        in.VaultID,
		RequestedBy:    in.RequesterID,
		NewOwner:       in.NewOwner,
		Reason:         in.Reason,
		State:          models.StatePending,
		MLScore:        a.Score,
		Recommendation: a.Recommendation,
		TokenHash:      e.hasher.Hash(token),
		ThreatIndex:    a.Score,
		CreatedAt:      now,
	}
	if a.Recommendation == models.RecommendDeny {
		req.State = models.StateDenied
		token = ""
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := e.repomanager.Transfers(tx).Create(ctx, req); err != nil {
			return fmt.Errorf("create transfer request: %w", err)
		}
		effects := transferEffects(p, req)
		effects = append(effects, LogDecision{Log: models.DecisionLog{
			RequestID:  req.ID,
			VaultID:    req.VaultID,
			Engine:     engineTransfer,
			Outcome:    string(a.Recommendation),
			Score:      a.Score,
			Confidence: 1 - a.Score/100,
			Reason:     strings.Join(a.Factors, "; "),
			CreatedAt:  now,
		}})
		return applyEffects(ctx, e.repomanager, tx, effects)
	})
	if err != nil {
		return nil, "", err
	}

	metrics.ObserveDecision(engineTransfer, string(a.Recommendation), a.Score)
	e.log.Info(ctx, "transfer requested",
		"vault_id", req.VaultID, "request_id", req.ID, "score", a.Score, "recommendation", a.Recommendation)
	return req, token, nil
}

// Accept completes the pending transfer matching token and makes acceptorID
// the vault owner. A token that was already used yields ErrorInvalidState.
func (e *TransferEngine) Accept(ctx context.Context, token, acceptorID string) (*models.VaultTransferRequest, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	req, err := e.repomanager.Transfers(e.db).GetByTokenHash(ctx, e.hasher.Hash(token))
	if err != nil {
		return nil, err
	}
	if req.State != models.StatePending {
		return nil, common.ErrorInvalidState
	}
	acceptor, err := e.repomanager.Users(e.db).GetByID(ctx, acceptorID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := e.repomanager.Transfers(tx).Complete(ctx, req.ID, acceptor.ID, now); err != nil {
			return err
		}
		if err := e.repomanager.Vaults(tx).SetOwner(ctx, req.VaultID, acceptor.ID); err != nil {
			return fmt.Errorf("set owner: %w", err)
		}
		return applyEffects(ctx, e.repomanager, tx, []Effect{
			RaiseThreat{Event: models.ThreatEvent{
				VaultID:     req.VaultID,
				Type:        threatOwnershipChange,
				Severity:    models.ThreatMedium,
				Score:       req.ThreatIndex,
				Description: fmt.Sprintf("ownership moved from %s to %s", req.RequestedBy, acceptor.ID),
				CreatedAt:   now,
			}},
			LogDecision{Log: models.DecisionLog{
				RequestID: req.ID,
				VaultID:   req.VaultID,
				Engine:    engineTransfer,
				Outcome:   string(models.StateCompleted),
				Score:     req.ThreatIndex,
				Reason:    "accepted by " + acceptor.ID,
				CreatedAt: now,
			}},
		})
	})
	if err != nil {
		return nil, err
	}

	req.State = models.StateCompleted
	req.NewOwnerID = acceptor.ID
	req.CompletedAt = &now

	e.log.Info(ctx, "vault ownership transferred",
		"vault_id", req.VaultID, "request_id", req.ID, "new_owner_id", acceptor.ID)
	return req, nil
}

// Cancel withdraws a pending transfer. Only the vault owner may cancel.
func (e *TransferEngine) Cancel(ctx context.Context, requestID, ownerID string) error {
	req, err := e.repomanager.Transfers(e.db).GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if _, err := e.requireOwner(ctx, e.db, req.VaultID, ownerID, false); err != nil {
		return err
	}
	if err := e.repomanager.Transfers(e.db).Deny(ctx, req.ID); err != nil {
		return err
	}
	e.log.Info(ctx, "transfer cancelled", "vault_id", req.VaultID, "request_id", req.ID)
	return nil
}
