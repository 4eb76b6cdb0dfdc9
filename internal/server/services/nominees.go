package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// NomineeService manages who may act on a vault besides its owner.
type NomineeService struct {
	base
}

func NewNomineeService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*NomineeService, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &NomineeService{base: b}, nil
}

// Invite creates a pending nominee on a vault owned by inviterID and returns
// the invitation token to pass on to the invitee.
func (s *NomineeService) Invite(ctx context.Context, vaultID, inviterID, name, email string) (*models.Nominee, string, error) {
	if strings.TrimSpace(email) == "" {
		return nil, "", fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if _, err := s.requireOwner(ctx, s.db, vaultID, inviterID, false); err != nil {
		return nil, "", err
	}

	token := cryptox.NewToken()
	n, err := s.repomanager.Nominees(s.db).Create(ctx, &models.Nominee{
		VaultID:         vaultID,
		Name:            name,
		Email:           email,
		InvitedByUserID: inviterID,
		Status:          models.NomineePending,
		InviteTokenHash: s.hasher.Hash(token),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create nominee: %w", err)
	}

	s.log.Info(ctx, "nominee invited", "vault_id", vaultID, "nominee_id", n.ID)
	return n, token, nil
}

// AcceptInvite binds the invitation to userID. An invitation can be
// accepted once.
func (s *NomineeService) AcceptInvite(ctx context.Context, token, userID string) (*models.Nominee, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	n, err := s.repomanager.Nominees(s.db).GetByInviteTokenHash(ctx, s.hasher.Hash(token))
	if err != nil {
		return nil, err
	}
	if n.Status != models.NomineePending {
		return nil, common.ErrorInvalidState
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repomanager.Nominees(s.db).Accept(ctx, n.ID, userID); err != nil {
		return nil, err
	}

	n.UserID = userID
	n.Status = models.NomineeAccepted
	s.log.Info(ctx, "nominee accepted", "vault_id", n.VaultID, "nominee_id", n.ID)
	return n, nil
}

// SetStatus moves a nominee to status. The vault owner may make any allowed
// move; the nominee may only revoke itself.
func (s *NomineeService) SetStatus(ctx context.Context, nomineeID, actorID string, status models.NomineeStatus) (*models.Nominee, error) {
	next, err := models.ParseNomineeStatus(string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	repo := s.repomanager.Nominees(s.db)
	n, err := repo.GetByID(ctx, nomineeID)
	if err != nil {
		return nil, err
	}

	self := n.UserID != "" && n.UserID == actorID
	if !(self && next == models.NomineeRevoked) {
		if _, err := s.requireOwner(ctx, s.db, n.VaultID, actorID, false); err != nil {
			return nil, err
		}
	}

	if !n.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", common.ErrorInvalidState, n.Status, next)
	}
	if err := repo.UpdateStatus(ctx, n.ID, n.Status, next); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "nominee status changed",
		"vault_id", n.VaultID, "nominee_id", n.ID, "from", n.Status, "to", next)
	n.Status = next
	return n, nil
}
