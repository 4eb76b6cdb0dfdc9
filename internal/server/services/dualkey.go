package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/dualkey"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/scoring"
)

// DualKeyEngine decides dual-key requests: a second party must agree
// before a vault is opened. Requests are auto-decided on the composite risk
// score or resolved manually by the vault owner.
type DualKeyEngine struct {
	base
}

func NewDualKeyEngine(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*DualKeyEngine, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &DualKeyEngine{base: b}, nil
}

func (e *DualKeyEngine) Submit(ctx context.Context, vaultID, requesterID string) (*models.DualKeyRequest, error) {
	if _, err := e.requireMember(ctx, e.db, vaultID, requesterID); err != nil {
		return nil, err
	}
	req := &models.DualKeyRequest{VaultID: vaultID, RequesterID: requesterID, State: models.StatePending}
	created, err := e.repomanager.DualKey(e.db).Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create dual-key request: %w", err)
	}
	return created, nil
}

// decideDualKey approves strictly below threshold.
func decideDualKey(req *models.DualKeyRequest, eval scoring.Evaluation, threshold float64, now time.Time) (dualkey.Resolution, []Effect) {
	res := dualkey.Resolution{
		State:  models.StateDenied,
		Score:  eval.Composite,
		Method: models.MethodMLAuto,
		At:     now,
	}
	reason := fmt.Sprintf("composite %.2f at or above %.2f", eval.Composite, threshold)
	if eval.Composite < threshold {
		res.State = models.StateApproved
		reason = fmt.Sprintf("composite %.2f below %.2f", eval.Composite, threshold)
	}

	return res, []Effect{LogDecision{Log: models.DecisionLog{
		RequestID:  req.ID,
		VaultID:    req.VaultID,
		Engine:     engineDualKey,
		Outcome:    string(res.State),
		Score:      eval.Composite,
		Confidence: 1 - eval.Composite/100,
		Reason:     reason,
		CreatedAt:  now,
	}}}
}

// Decide auto-decides a pending request from the vault's recent access
// history. Only one concurrent decision wins; the others get
// ErrorInvalidState.
func (e *DualKeyEngine) Decide(ctx context.Context, requestID string) (*models.DualKeyRequest, error) {
	req, err := e.repomanager.DualKey(e.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != models.StatePending {
		return nil, common.ErrorInvalidState
	}

	events, err := e.recentEvents(ctx, e.db, req.VaultID)
	if err != nil {
		return nil, err
	}

	eval := e.scorer.Evaluate(events, scoring.DeletionPointsApproval)
	res, effects := decideDualKey(req, eval, e.scorer.Policy().AutoApproveThreshold, e.clock.Now())

	if err := e.resolve(ctx, req, res, effects); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "dual-key decided",
		"vault_id", req.VaultID, "request_id", req.ID, "state", res.State, "score", res.Score)
	return req, nil
}

// DecideManually records the vault owner's decision on a pending request.
func (e *DualKeyEngine) DecideManually(ctx context.Context, requestID string, approve bool, approverID string) (*models.DualKeyRequest, error) {
	req, err := e.repomanager.DualKey(e.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireOwner(ctx, e.db, req.VaultID, approverID, false); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	res := dualkey.Resolution{
		State:      models.StateDenied,
		Score:      req.MLScore,
		Method:     models.MethodManual,
		ApproverID: approverID,
		At:         now,
	}
	if approve {
		res.State = models.StateApproved
	}
	effects := []Effect{LogDecision{Log: models.DecisionLog{
		RequestID:  req.ID,
		VaultID:    req.VaultID,
		Engine:     engineDualKey,
		Outcome:    string(res.State),
		Score:      req.MLScore,
		Confidence: 1,
		Reason:     "manual decision by vault owner",
		CreatedAt:  now,
	}}}

	if err := e.resolve(ctx, req, res, effects); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "dual-key resolved manually",
		"vault_id", req.VaultID, "request_id", req.ID, "state", res.State, "approver_id", approverID)
	return req, nil
}

func (e *DualKeyEngine) resolve(ctx context.Context, req *models.DualKeyRequest, res dualkey.Resolution, effects []Effect) error {
	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := e.repomanager.DualKey(tx).Resolve(ctx, req.ID, res); err != nil {
			return err
		}
		return applyEffects(ctx, e.repomanager, tx, effects)
	})
	if err != nil {
		return err
	}

	req.State = res.State
	req.MLScore = res.Score
	req.DecisionMethod = res.Method
	req.ApproverID = res.ApproverID
	at := res.At
	if res.State == models.StateApproved {
		req.ApprovedAt = &at
	} else {
		req.DeniedAt = &at
	}
	metrics.ObserveDecision(engineDualKey, string(res.State), res.Score)
	return nil
}

// ListPending returns the vault's undecided requests, oldest first.
func (e *DualKeyEngine) ListPending(ctx context.Context, vaultID, userID string) ([]*models.DualKeyRequest, error) {
	if _, err := e.requireMember(ctx, e.db, vaultID, userID); err != nil {
		return nil, err
	}
	return e.repomanager.DualKey(e.db).ListPending(ctx, vaultID)
}
