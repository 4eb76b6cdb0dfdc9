package services

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThreatFixture(t *testing.T) (*fixture, *ThreatEngine) {
	t.Helper()
	f := newFixture(t)
	f.store.addUser("u1", "ext-1", "Alice", "alice@example.com", testNow)
	f.store.addUser("u2", "ext-2", "Bob", "bob@example.com", testNow)
	f.store.addVault("v1", "u1", false)

	e, err := NewThreatEngine(f.db, f.m, f.cfg, f.opts()...)
	require.NoError(t, err)
	return f, e
}

func TestThreatEngine_RecordEvent_StampsUserAndTime(t *testing.T) {
	f, e := newThreatFixture(t)

	ev, err := e.RecordEvent(t.Context(), "u1", models.AccessEvent{VaultID: "v1", EventType: models.EventOpened})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "Alice", ev.UserName)
	assert.Equal(t, "u1", ev.UserID)
	assert.True(t, ev.Timestamp.Equal(testNow))
	assert.Len(t, f.store.eventsOf("v1"), 1)
}

func TestThreatEngine_RecordEvent_KeepsGivenTimestamp(t *testing.T) {
	_, e := newThreatFixture(t)
	at := testNow.Add(-time.Hour)

	ev, err := e.RecordEvent(t.Context(), "u1", models.AccessEvent{
		VaultID: "v1", EventType: models.EventViewed, Timestamp: at,
		Latitude: f64(56.95), Longitude: f64(24.1),
	})
	require.NoError(t, err)
	assert.True(t, ev.Timestamp.Equal(at))
	assert.True(t, ev.HasLocation())
}

func TestThreatEngine_RecordEvent_Rejects(t *testing.T) {
	f, e := newThreatFixture(t)

	_, err := e.RecordEvent(t.Context(), "u2", models.AccessEvent{VaultID: "v1", EventType: models.EventOpened})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = e.RecordEvent(t.Context(), "u1", models.AccessEvent{VaultID: "v1", EventType: "teleported"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.RecordEvent(t.Context(), "u1", models.AccessEvent{VaultID: "v1", EventType: models.EventOpened, Latitude: f64(1)})
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.Empty(t, f.store.eventsOf("v1"))
}

func TestThreatEngine_Assess(t *testing.T) {
	f, e := newThreatFixture(t)
	f.store.riskyBurst("v1", "u1", testNow.Add(-time.Minute))
	f.store.threats = append(f.store.threats, &models.ThreatEvent{
		ID: "te-1", VaultID: "v1", Type: "ownership_change", Severity: models.ThreatMedium, CreatedAt: testNow,
	})

	r, err := e.Assess(t.Context(), "v1", "u1")
	require.NoError(t, err)

	assert.Equal(t, models.ThreatHigh, r.Evaluation.Threat.Level)
	assert.InDelta(t, 79.5, r.Evaluation.Composite, 1e-9)
	assert.Contains(t, r.Evaluation.Threat.Flags, scoring.FlagRapidAccess)
	assert.Contains(t, r.Evaluation.Threat.Flags, scoring.FlagImpossibleTravel)

	var types []string
	for _, th := range r.Threats {
		types = append(types, th.Type)
	}
	assert.Contains(t, types, scoring.FlagRapidAccess)

	require.Len(t, r.Daily, 1)
	assert.Equal(t, 12, r.Daily[0].AccessCount)
	require.Len(t, r.Events, 1)
	assert.Equal(t, "te-1", r.Events[0].ID)
}

func TestThreatEngine_Assess_QuietVault(t *testing.T) {
	_, e := newThreatFixture(t)

	r, err := e.Assess(t.Context(), "v1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ThreatLow, r.Evaluation.Threat.Level)
	assert.InDelta(t, 8.0, r.Evaluation.Composite, 1e-9)
	assert.Empty(t, r.Threats)
	assert.Empty(t, r.Daily)
}

func TestThreatEngine_Assess_Forbidden(t *testing.T) {
	_, e := newThreatFixture(t)

	_, err := e.Assess(t.Context(), "v1", "u2")
	assert.ErrorIs(t, err, common.ErrorForbidden)
}
