// Package identity owns user accounts: registration, password verification
// with bcrypt and role assignment. The token engine consumes it through
// Authenticate and Lookup only.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Provider verifies credentials against the users store.
type Provider struct {
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	cost        int
	dummyHash   []byte
}

type Option func(*Provider)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

func NewProvider(m repomanager.RepositoryManager, opts ...Option) (*Provider, error) {
	p := &Provider{
		repomanager: m,
		logger:      logging.Nop(),
		cost:        bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("module", "identity")

	// compared against when the login is unknown so both paths cost the same
	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(filler), p.cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	p.dummyHash = dummy
	return p, nil
}

// Register creates an account holding the default role.
func (p *Provider) Register(ctx context.Context, login, displayName, password string) (*models.Identity, error) {
	login = strings.TrimSpace(login)
	displayName = strings.TrimSpace(displayName)
	if login == "" || password == "" {
		return nil, fmt.Errorf("%w: login and password are required", common.ErrorValidation)
	}
	if displayName == "" {
		displayName = login
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", common.ErrorValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var identity *models.Identity
	err = p.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		u, err := repos.Users().Create(ctx, &models.User{UserName: login, DisplayName: displayName, PasswordHash: hash})
		if err != nil {
			return err
		}
		if err := repos.Users().AddRole(ctx, u.ID, common.DefaultRole); err != nil {
			return err
		}
		identity = &models.Identity{SubjectID: u.ID, DisplayName: u.DisplayName, Roles: []string{common.DefaultRole}}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	p.logger.Info(ctx, "user registered", "user_id", identity.SubjectID)
	return identity, nil
}

// Authenticate returns common.ErrInvalidCredential for an unknown login and
// for a wrong password alike.
func (p *Provider) Authenticate(ctx context.Context, login, password string) (*models.Identity, error) {
	user, err := p.repomanager.Users().GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredential
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrInvalidCredential
	}
	return toIdentity(user), nil
}

// Lookup returns the subject's current display name and roles.
func (p *Provider) Lookup(ctx context.Context, subjectID string) (*models.Identity, error) {
	user, err := p.repomanager.Users().GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return toIdentity(user), nil
}

// GrantRole adds role to the subject; granting an existing role is a no-op.
func (p *Provider) GrantRole(ctx context.Context, subjectID, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("%w: role is required", common.ErrorValidation)
	}
	if err := p.repomanager.Users().AddRole(ctx, subjectID, role); err != nil {
		return err
	}
	p.logger.Info(ctx, "role granted", "user_id", subjectID, "role", role)
	return nil
}

func toIdentity(u *models.User) *models.Identity {
	return &models.Identity{SubjectID: u.ID, DisplayName: u.DisplayName, Roles: u.Roles}
}
