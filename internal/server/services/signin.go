package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// SignInInput is the identity presented by the external identity provider.
// It is trusted as given.
type SignInInput struct {
	ExternalID string
	FullName   string
	Email      string
}

type SignInResult struct {
	User          *models.User
	AccessToken   string
	OrphansPurged int
}

// AuthService signs users in and issues access tokens.
type AuthService struct {
	base
	deletion *DeletionEngine
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*AuthService, error) {
	b, err := newBase(db, m, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &AuthService{base: b, deletion: &DeletionEngine{base: b}}, nil
}

// SignIn finds or creates the account for the external identity, purges
// vaults orphaned by stale accounts of the same identity, and returns an
// access token. Reconciliation failures are logged and do not block the
// sign-in.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return nil, fmt.Errorf("%w: external id is required", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)
	found, err := repo.FindByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	var user *models.User
	if len(found) > 0 {
		user = found[0]
	} else {
		user, err = repo.Create(ctx, &models.User{
			ExternalID: in.ExternalID,
			FullName:   in.FullName,
			Email:      in.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.log.Info(ctx, "user registered", "user_id", user.ID)
	}

	purged, err := s.deletion.ReconcileOrphans(ctx, user)
	if err != nil {
		s.log.Warn(ctx, "orphan reconciliation failed", "user_id", user.ID, "error", err)
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.config.SecretKey), s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &SignInResult{User: user, AccessToken: token, OrphansPurged: purged}, nil
}
