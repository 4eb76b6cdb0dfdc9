package services

import (
	"testing"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNomineeFixture(t *testing.T) (*fixture, *NomineeService) {
	t.Helper()
	f := newFixture(t)
	f.store.addUser("u1", "ext-1", "Alice", "alice@example.com", testNow)
	f.store.addUser("u2", "ext-2", "Bob", "bob@example.com", testNow)
	f.store.addUser("u3", "ext-3", "Carol", "carol@example.com", testNow)
	f.store.addVault("v1", "u1", false)

	s, err := NewNomineeService(f.db, f.m, f.cfg, f.opts()...)
	require.NoError(t, err)
	return f, s
}

func TestNomineeService_InviteAndAccept(t *testing.T) {
	f, s := newNomineeFixture(t)

	n, token, err := s.Invite(t.Context(), "v1", "u1", "Bob", "bob@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, models.NomineePending, n.Status)
	assert.Empty(t, n.UserID)
	assert.NotEqual(t, token, f.store.nominees[n.ID].InviteTokenHash)

	got, err := s.AcceptInvite(t.Context(), token, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.NomineeAccepted, got.Status)
	assert.Equal(t, "u2", f.store.nominees[n.ID].UserID)

	_, err = s.AcceptInvite(t.Context(), token, "u3")
	assert.ErrorIs(t, err, common.ErrorInvalidState)

	_, err = s.AcceptInvite(t.Context(), "bogus", "u3")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestNomineeService_Invite_Rejects(t *testing.T) {
	f, s := newNomineeFixture(t)

	_, _, err := s.Invite(t.Context(), "v1", "u2", "Carol", "carol@example.com")
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, _, err = s.Invite(t.Context(), "v1", "u1", "Carol", "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.Empty(t, f.store.nominees)
}

func TestNomineeService_SetStatus(t *testing.T) {
	f, s := newNomineeFixture(t)
	n := f.store.addNominee("v1", "u2", models.NomineeAccepted)

	got, err := s.SetStatus(t.Context(), n.ID, "u1", models.NomineeActive)
	require.NoError(t, err)
	assert.Equal(t, models.NomineeActive, got.Status)

	_, err = s.SetStatus(t.Context(), n.ID, "u1", models.NomineePending)
	assert.ErrorIs(t, err, common.ErrorInvalidState)

	_, err = s.SetStatus(t.Context(), n.ID, "u1", "sleeping")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.SetStatus(t.Context(), n.ID, "u3", models.NomineeInactive)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	// A nominee may only step down.
	_, err = s.SetStatus(t.Context(), n.ID, "u2", models.NomineeInactive)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	got, err = s.SetStatus(t.Context(), n.ID, "u2", models.NomineeRevoked)
	require.NoError(t, err)
	assert.Equal(t, models.NomineeRevoked, got.Status)
	assert.Equal(t, models.NomineeRevoked, f.store.nominees[n.ID].Status)
}
