package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/scoring"
)

const (
	emergencyBaseConfidence    = 0.5
	emergencyApproveConfidence = 0.6
)

var (
	emergencyKeywords    = []string{"medical", "emergency", "urgent", "critical", "immediate", "accident", "hospital"}
	nonEmergencyKeywords = []string{"test", "demo", "check", "just", "curious"}

	urgencyAdjustment = map[models.Urgency]float64{
		models.UrgencyCritical: 0.2,
		models.UrgencyHigh:     0.1,
		models.UrgencyMedium:   0,
		models.UrgencyLow:      -0.1,
	}
)

type EmergencyInput struct {
	VaultID     string
	RequesterID string
	Reason      string
	Urgency     models.Urgency
}

// EmergencyAssessment is the advisory verdict on an emergency request. It
// never changes the request's state.
type EmergencyAssessment struct {
	RequestID      string
	Recommendation models.Recommendation
	Confidence     float64
	Reasoning      string
	RiskFactors    []string
	CompositeRisk  float64
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// assessEmergency derives a confidence in [0, 1] from the urgency, the
// wording of the reason, the vault's composite risk and the request age.
func assessEmergency(req *models.EmergencyAccessRequest, composite float64, now time.Time) EmergencyAssessment {
	confidence := emergencyBaseConfidence + urgencyAdjustment[req.Urgency]
	factors := []string{}

	reason := strings.ToLower(req.Reason)
	if containsAny(reason, emergencyKeywords) {
		confidence += 0.15
	}
	if containsAny(reason, nonEmergencyKeywords) {
		confidence -= 0.2
		factors = append(factors, "Reason contains non-emergency keywords")
	}

	switch {
	case composite > 70:
		confidence -= 0.2
		factors = append(factors, fmt.Sprintf("Vault risk score is high (%.0f)", composite))
	case composite < 30:
		confidence += 0.1
	}

	age := now.Sub(req.CreatedAt)
	switch {
	case age < time.Hour:
		confidence += 0.05
	case age > 24*time.Hour:
		confidence -= 0.1
		factors = append(factors, "Request is more than a day old")
	}

	confidence = math.Max(0, math.Min(confidence, 1))

	var reasoning string
	switch {
	case confidence >= 0.7:
		reasoning = "High confidence"
	case confidence >= 0.5:
		reasoning = "Moderate confidence"
	default:
		reasoning = "Low confidence - review carefully"
	}

	rec := models.RecommendReview
	if confidence >= emergencyApproveConfidence {
		rec = models.RecommendApprove
	}

	return EmergencyAssessment{
		RequestID:      req.ID,
		Recommendation: rec,
		Confidence:     confidence,
		Reasoning:      fmt.Sprintf("%s (%s urgency)", reasoning, req.Urgency),
		RiskFactors:    factors,
		CompositeRisk:  composite,
	}
}

// EmergencyEngine handles time-boxed emergency access to a vault: requests,
// advisory assessment, approval with a one-time pass code, and pass code
// verification.
type EmergencyEngine struct {
	base
}

func NewEmergencyEngine(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*EmergencyEngine, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &EmergencyEngine{base: b}, nil
}

func (e *EmergencyEngine) Request(ctx context.Context, in EmergencyInput) (*models.EmergencyAccessRequest, error) {
	urgency, err := models.ParseUrgency(string(in.Urgency))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", common.ErrorValidation)
	}
	if _, err := e.requireMember(ctx, e.db, in.VaultID, in.RequesterID); err != nil {
		return nil, err
	}

	req := &models.EmergencyAccessRequest{
		VaultID:     in.VaultID,
		RequesterID: in.RequesterID,
		Reason:      in.Reason,
		Urgency:     urgency,
		State:       models.StatePending,
	}
	created, err := e.repomanager.Emergency(e.db).Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create emergency request: %w", err)
	}

	e.log.Info(ctx, "emergency access requested",
		"vault_id", in.VaultID, "request_id", created.ID, "urgency", urgency)
	return created, nil
}

// Assess computes the advisory recommendation for a request and records it
// in the decision log. Owners and admins may assess.
func (e *EmergencyEngine) Assess(ctx context.Context, requestID, userID string) (*EmergencyAssessment, error) {
	req, err := e.repomanager.Emergency(e.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireOwner(ctx, e.db, req.VaultID, userID, true); err != nil {
		return nil, err
	}

	events, err := e.recentEvents(ctx, e.db, req.VaultID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	eval := e.scorer.Evaluate(events, scoring.DeletionPointsVaultThreat)
	a := assessEmergency(req, eval.Composite, now)

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return applyEffects(ctx, e.repomanager, tx, []Effect{LogDecision{Log: models.DecisionLog{
			RequestID:  req.ID,
			VaultID:    req.VaultID,
			Engine:     engineEmergency,
			Outcome:    string(a.Recommendation),
			Score:      a.CompositeRisk,
			Confidence: a.Confidence,
			Reason:     a.Reasoning,
			CreatedAt:  now,
		}}})
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug(ctx, "emergency request assessed",
		"vault_id", req.VaultID, "request_id", req.ID, "confidence", a.Confidence, "score", a.CompositeRisk)
	return &a, nil
}

// Approve grants the request and returns the pass code. The code is valid
// for the policy's pass code validity and may be used once. The requester's
// accepted or inactive nominee record on the vault becomes active.
func (e *EmergencyEngine) Approve(ctx context.Context, requestID, approverID string) (*models.EmergencyAccessRequest, string, error) {
	req, err := e.repomanager.Emergency(e.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, "", err
	}
	if _, err := e.requireOwner(ctx, e.db, req.VaultID, approverID, true); err != nil {
		return nil, "", err
	}
	if req.State != models.StatePending {
		return nil, "", common.ErrorInvalidState
	}

	code, err := cryptox.NewPassCode()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	now := e.clock.Now()
	expires := now.Add(e.scorer.Policy().PassCodeValidity)
	hash := e.hasher.Hash(code)

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := e.repomanager.Emergency(tx).Approve(ctx, req.ID, approverID, hash, expires, now); err != nil {
			return err
		}
		if _, err := e.repomanager.Nominees(tx).ActivateForUser(ctx, req.VaultID, req.RequesterID); err != nil {
			return fmt.Errorf("activate nominee: %w", err)
		}
		return applyEffects(ctx, e.repomanager, tx, []Effect{LogDecision{Log: models.DecisionLog{
			RequestID:  req.ID,
			VaultID:    req.VaultID,
			Engine:     engineEmergency,
			Outcome:    string(models.StateApproved),
			Confidence: 1,
			Reason:     "approved by " + approverID,
			CreatedAt:  now,
		}}})
	})
	if err != nil {
		return nil, "", err
	}

	req.State = models.StateApproved
	req.ApproverID = approverID
	req.PassCodeHash = hash
	req.ExpiresAt = &expires
	req.DecidedAt = &now

	metrics.ObserveDecision(engineEmergency, string(models.StateApproved), 0)
	e.log.Info(ctx, "emergency access approved",
		"vault_id", req.VaultID, "request_id", req.ID, "expires_at", expires)
	return req, code, nil
}

func (e *EmergencyEngine) Deny(ctx context.Context, requestID, approverID string) (*models.EmergencyAccessRequest, error) {
	req, err := e.repomanager.Emergency(e.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireOwner(ctx, e.db, req.VaultID, approverID, true); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := e.repomanager.Emergency(tx).Deny(ctx, req.ID, approverID, now); err != nil {
			return err
		}
		return applyEffects(ctx, e.repomanager, tx, []Effect{LogDecision{Log: models.DecisionLog{
			RequestID:  req.ID,
			VaultID:    req.VaultID,
			Engine:     engineEmergency,
			Outcome:    string(models.StateDenied),
			Confidence: 1,
			Reason:     "denied by " + approverID,
			CreatedAt:  now,
		}}})
	})
	if err != nil {
		return nil, err
	}

	req.State = models.StateDenied
	req.ApproverID = approverID
	req.DecidedAt = &now

	metrics.ObserveDecision(engineEmergency, string(models.StateDenied), 0)
	e.log.Info(ctx, "emergency access denied", "vault_id", req.VaultID, "request_id", req.ID)
	return req, nil
}

// VerifyPass returns the approved, unexpired and unconsumed request that
// code unlocks on vaultID. Anything else is ErrorNotFound.
func (e *EmergencyEngine) VerifyPass(ctx context.Context, code, vaultID string) (*models.EmergencyAccessRequest, error) {
	if strings.TrimSpace(code) == "" {
		return nil, common.ErrorNotFound
	}
	req, err := e.repomanager.Emergency(e.db).GetByPassCodeHash(ctx, vaultID, e.hasher.Hash(code))
	if err != nil {
		return nil, err
	}
	if !req.Usable(e.clock.Now()) {
		return nil, common.ErrorNotFound
	}
	return req, nil
}

// ConsumePass uses up code and records an emergency access event on the
// vault for the requester. An unknown code is ErrorNotFound; a code that
// was already used or has expired is ErrorInvalidState.
func (e *EmergencyEngine) ConsumePass(ctx context.Context, code, vaultID string) (*models.EmergencyAccessRequest, error) {
	if strings.TrimSpace(code) == "" {
		return nil, common.ErrorNotFound
	}
	req, err := e.repomanager.Emergency(e.db).GetByPassCodeHash(ctx, vaultID, e.hasher.Hash(code))
	if err != nil {
		return nil, err
	}
	if !req.Usable(e.clock.Now()) {
		return nil, fmt.Errorf("%w: pass code already used or expired", common.ErrorInvalidState)
	}
	requester, err := e.repomanager.Users(e.db).GetByID(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := e.repomanager.Emergency(tx).Consume(ctx, req.ID, now); err != nil {
			return err
		}
		_, err := e.repomanager.AccessEvents(tx).Create(ctx, &models.AccessEvent{
			VaultID:   req.VaultID,
			UserID:    requester.ID,
			UserName:  requester.FullName,
			EventType: models.EventEmergency,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	req.ConsumedAt = &now
	metrics.AccessEventsTotal.WithLabelValues(string(models.EventEmergency)).Inc()
	e.log.Info(ctx, "emergency pass used", "vault_id", req.VaultID, "request_id", req.ID)
	return req, nil
}
