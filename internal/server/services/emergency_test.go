package services

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmergencyFixture(t *testing.T) (*fixture, *EmergencyEngine) {
	t.Helper()
	f := newFixture(t)
	f.store.addUser("u1", "ext-1", "Alice", "alice@example.com", testNow)
	f.store.addUser("u2", "ext-2", "Bob", "bob@example.com", testNow)
	f.store.addUser("admin", "ext-admin", "Admin", "admin@example.com", testNow)
	f.store.addUser("u3", "ext-3", "Carol", "carol@example.com", testNow)
	f.store.roles["admin"] = map[string]bool{common.RoleAdmin: true}
	f.store.addVault("v1", "u1", false)
	f.store.addNominee("v1", "u2", models.NomineeAccepted)

	e, err := NewEmergencyEngine(f.db, f.m, f.cfg, f.opts()...)
	require.NoError(t, err)
	return f, e
}

func (f *fixture) emergencyRequest(t *testing.T, e *EmergencyEngine) *models.EmergencyAccessRequest {
	t.Helper()
	req, err := e.Request(t.Context(), EmergencyInput{
		VaultID: "v1", RequesterID: "u2", Reason: "hospital", Urgency: models.UrgencyHigh,
	})
	require.NoError(t, err)
	return req
}

func TestAssessEmergency(t *testing.T) {
	tests := []struct {
		name       string
		urgency    models.Urgency
		reason     string
		composite  float64
		age        time.Duration
		confidence float64
		want       models.Recommendation
		reasoning  string
		factors    int
	}{
		{
			name: "critical medical emergency", urgency: models.UrgencyCritical,
			reason: "Medical emergency", composite: 10, age: 10 * time.Minute,
			confidence: 1, want: models.RecommendApprove, reasoning: "High confidence",
		},
		{
			name: "idle curiosity", urgency: models.UrgencyLow,
			reason: "just curious, a test", composite: 80, age: 48 * time.Hour,
			confidence: 0, want: models.RecommendReview, reasoning: "Low confidence", factors: 3,
		},
		{
			name: "neutral", urgency: models.UrgencyMedium,
			reason: "need the deed", composite: 50, age: 2 * time.Hour,
			confidence: 0.5, want: models.RecommendReview, reasoning: "Moderate confidence",
		},
		{
			name: "high urgency at the boundary", urgency: models.UrgencyHigh,
			reason: "need the deed", composite: 50, age: 2 * time.Hour,
			confidence: 0.6, want: models.RecommendApprove, reasoning: "Moderate confidence",
		},
		{
			name: "positive and negative keywords", urgency: models.UrgencyMedium,
			reason: "urgent check", composite: 30, age: 30 * time.Minute,
			confidence: 0.5, want: models.RecommendReview, reasoning: "Moderate confidence", factors: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.EmergencyAccessRequest{
				ID: "em-1", Urgency: tt.urgency, Reason: tt.reason, CreatedAt: testNow.Add(-tt.age),
			}
			a := assessEmergency(req, tt.composite, testNow)

			assert.InDelta(t, tt.confidence, a.Confidence, 1e-9)
			assert.Equal(t, tt.want, a.Recommendation)
			assert.True(t, strings.HasPrefix(a.Reasoning, tt.reasoning), a.Reasoning)
			assert.Len(t, a.RiskFactors, tt.factors)
			assert.Equal(t, tt.composite, a.CompositeRisk)
		})
	}
}

func TestEmergencyEngine_Request_Validation(t *testing.T) {
	f, e := newEmergencyFixture(t)

	_, err := e.Request(t.Context(), EmergencyInput{VaultID: "v1", RequesterID: "u2", Reason: "x", Urgency: "extreme"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.Request(t.Context(), EmergencyInput{VaultID: "v1", RequesterID: "u2", Reason: " ", Urgency: models.UrgencyLow})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.Request(t.Context(), EmergencyInput{VaultID: "v1", RequesterID: "u3", Reason: "x", Urgency: models.UrgencyLow})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	assert.Empty(t, f.store.emergency)
}

func TestEmergencyEngine_ApproveVerifyConsume(t *testing.T) {
	f, e := newEmergencyFixture(t)
	expectCommit(f.mock, 2)
	req := f.emergencyRequest(t, e)

	approved, code, err := e.Approve(t.Context(), req.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, code, cryptox.PassCodeLength)
	assert.Equal(t, models.StateApproved, approved.State)
	require.NotNil(t, approved.ExpiresAt)
	assert.True(t, approved.ExpiresAt.Equal(testNow.Add(24*time.Hour)))
	assert.NotEqual(t, code, f.store.emergency[req.ID].PassCodeHash)

	for _, n := range f.store.nominees {
		if n.UserID == "u2" {
			assert.Equal(t, models.NomineeActive, n.Status)
		}
	}

	got, err := e.VerifyPass(t.Context(), strings.ToLower(code), "v1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	_, err = e.VerifyPass(t.Context(), code, "other-vault")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	consumed, err := e.ConsumePass(t.Context(), code, "v1")
	require.NoError(t, err)
	require.NotNil(t, consumed.ConsumedAt)

	events := f.store.eventsOf("v1")
	require.Len(t, events, 1)
	assert.Equal(t, models.EventEmergency, events[0].EventType)
	assert.Equal(t, "Bob", events[0].UserName)

	_, err = e.VerifyPass(t.Context(), code, "v1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.ConsumePass(t.Context(), code, "v1")
	assert.ErrorIs(t, err, common.ErrorInvalidState)
	assert.Len(t, f.store.eventsOf("v1"), 1)

	_, err = e.ConsumePass(t.Context(), "NOSUCHCD", "v1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.ConsumePass(t.Context(), " ", "v1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEmergencyEngine_PassExpires(t *testing.T) {
	f, e := newEmergencyFixture(t)
	expectCommit(f.mock, 1)
	req := f.emergencyRequest(t, e)

	_, code, err := e.Approve(t.Context(), req.ID, "u1")
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour - time.Second)
	_, err = e.VerifyPass(t.Context(), code, "v1")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = e.VerifyPass(t.Context(), code, "v1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.ConsumePass(t.Context(), code, "v1")
	assert.ErrorIs(t, err, common.ErrorInvalidState)
	assert.Empty(t, f.store.eventsOf("v1"))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEmergencyEngine_Approve_Authorization(t *testing.T) {
	f, e := newEmergencyFixture(t)
	expectCommit(f.mock, 1)
	req := f.emergencyRequest(t, e)

	_, _, err := e.Approve(t.Context(), req.ID, "u2")
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, _, err = e.Approve(t.Context(), req.ID, "u3")
	assert.ErrorIs(t, err, common.ErrorForbidden)

	got, _, err := e.Approve(t.Context(), req.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.ApproverID)

	_, _, err = e.Approve(t.Context(), req.ID, "u1")
	assert.ErrorIs(t, err, common.ErrorInvalidState)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEmergencyEngine_Deny(t *testing.T) {
	f, e := newEmergencyFixture(t)
	expectCommit(f.mock, 1)
	expectRollback(f.mock)
	req := f.emergencyRequest(t, e)

	got, err := e.Deny(t.Context(), req.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateDenied, got.State)
	require.Len(t, f.store.decisions, 1)
	assert.Equal(t, "denied", f.store.decisions[0].Outcome)

	_, err = e.Deny(t.Context(), req.ID, "u1")
	assert.ErrorIs(t, err, common.ErrorInvalidState)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEmergencyEngine_Assess(t *testing.T) {
	f, e := newEmergencyFixture(t)
	expectCommit(f.mock, 1)
	req := f.emergencyRequest(t, e)

	_, err := e.Assess(t.Context(), req.ID, "u3")
	assert.ErrorIs(t, err, common.ErrorForbidden)

	a, err := e.Assess(t.Context(), req.ID, "u1")
	require.NoError(t, err)

	// high +0.1, keyword +0.15, quiet vault +0.1, fresh +0.05
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)
	assert.Equal(t, models.RecommendApprove, a.Recommendation)
	assert.Equal(t, models.StatePending, f.store.emergency[req.ID].State)

	require.Len(t, f.store.decisions, 1)
	assert.Equal(t, engineEmergency, f.store.decisions[0].Engine)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
