// Package tokens implements the refresh-token lifecycle: issuance at login,
// single-use rotation, idempotent revocation and expiry evaluation. Access
// tokens are minted alongside by auth.Minter.
//
// A refresh token moves Active -> Rotated or Active -> Revoked, both
// terminal, and is Expired from the instant the clock reaches its expiry.
// Records are never deleted.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/audit"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/google/uuid"
)

// secretSize is the number of random bytes in a refresh secret.
const secretSize = 32

// IdentityProvider is the part of the identity service the engine relies on.
type IdentityProvider interface {
	Authenticate(ctx context.Context, login, password string) (*models.Identity, error)
	Lookup(ctx context.Context, subjectID string) (*models.Identity, error)
}

// LoginLimiter throttles failed logins. See ratelimit.Limiter.
type LoginLimiter interface {
	Check(ctx context.Context, login, ip string) error
	Fail(ctx context.Context, login, ip string) error
	Reset(ctx context.Context, login string) error
}

type Config struct {
	RefreshTokenLifetime time.Duration
	StoreTimeout         time.Duration
	// ReuseGrace is how long after a rotation a second presentation of the
	// same secret counts as a lost race instead of a replay. Zero disables it.
	ReuseGrace time.Duration
}

type Engine struct {
	repomanager repomanager.RepositoryManager
	identity    IdentityProvider
	minter      *auth.Minter
	clock       timex.Clock
	audit       audit.Sink
	limiter     LoginLimiter
	logger      logging.Logger
	config      Config
}

type Option func(*Engine)

func WithClock(c timex.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) { e.audit = s }
}

// WithLimiter enables login throttling. Without it logins are not limited.
func WithLimiter(l LoginLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine validates cfg and wires the collaborators. Invalid lifetimes are
// reported as *common.ConfigurationError.
func NewEngine(cfg Config, m repomanager.RepositoryManager, identity IdentityProvider, minter *auth.Minter, opts ...Option) (*Engine, error) {
	if cfg.RefreshTokenLifetime <= 0 {
		return nil, &common.ConfigurationError{Option: "refresh_token_lifetime_days", Reason: "must be positive"}
	}
	if cfg.StoreTimeout <= 0 {
		return nil, &common.ConfigurationError{Option: "store_timeout", Reason: "must be positive"}
	}
	if cfg.ReuseGrace < 0 {
		return nil, &common.ConfigurationError{Option: "reuse_grace", Reason: "must not be negative"}
	}
	if m == nil || identity == nil || minter == nil {
		return nil, errors.New("tokens: repository manager, identity provider and minter are required")
	}

	e := &Engine{
		repomanager: m,
		identity:    identity,
		minter:      minter,
		clock:       timex.SystemClock{},
		audit:       audit.NopSink{},
		logger:      logging.Nop(),
		config:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("module", "tokens")
	return e, nil
}

// IsActive is the pure expiry/revocation predicate.
func (e *Engine) IsActive(token *models.RefreshToken, now time.Time) bool {
	return token != nil && token.IsActive(now)
}

// Login verifies credentials and opens a new session.
func (e *Engine) Login(ctx context.Context, login, password, sourceIP string) (*models.TokenPair, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	sourceIP = normalizeIP(sourceIP)
	now := e.clock.Now()

	if e.limiter != nil {
		if err := e.limiter.Check(ctx, login, sourceIP); err != nil {
			if errors.Is(err, common.ErrRateLimited) {
				e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventLoginFailure, IP: sourceIP, Error: "rate_limited"})
				return nil, err
			}
			e.logger.Warn(ctx, "login limiter check failed", "error", err)
		}
	}

	identity, err := e.identity.Authenticate(ctx, login, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredential) {
			if e.limiter != nil {
				if ferr := e.limiter.Fail(ctx, login, sourceIP); ferr != nil {
					e.logger.Warn(ctx, "login limiter update failed", "error", ferr)
				}
			}
			e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventLoginFailure, IP: sourceIP, Error: "invalid_credential"})
			return nil, common.ErrInvalidCredential
		}
		return nil, storeError(err)
	}

	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, login); err != nil {
			e.logger.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}

	access, err := e.minter.Mint(identity.SubjectID, identity.DisplayName, identity.Roles, now)
	if err != nil {
		return nil, err
	}

	refresh, err := e.issue(ctx, e.repomanager, identity.SubjectID, sourceIP, now)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventLoginSuccess, UserID: identity.SubjectID, TokenID: refresh.ID, IP: sourceIP, Success: true})
	e.logger.Info(ctx, "session opened", "user_id", identity.SubjectID, "token_id", refresh.ID)

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh.Secret, ExpiresIn: e.minter.Lifetime()}, nil
}

// Issue creates and persists a fresh refresh token for subjectID. The
// returned record carries the plain Secret; only its digest is stored.
func (e *Engine) Issue(ctx context.Context, subjectID, sourceIP string) (*models.RefreshToken, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject is required", common.ErrorValidation)
	}
	return e.issue(ctx, e.repomanager, subjectID, normalizeIP(sourceIP), e.clock.Now())
}

// Rotate exchanges an active refresh token for a new token pair. Any failure
// to present an active token is reported as
// common.ErrInvalidOrInactiveRefreshToken, whatever the cause. Presenting a
// token that was already rotated revokes every active token of its subject,
// unless it comes back within Config.ReuseGrace of the rotation.
func (e *Engine) Rotate(ctx context.Context, presentedSecret, sourceIP string) (*models.TokenPair, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	sourceIP = normalizeIP(sourceIP)
	now := e.clock.Now()

	if presentedSecret == "" {
		return nil, common.ErrInvalidOrInactiveRefreshToken
	}

	current, err := e.repomanager.RefreshTokens().FindByHash(ctx, common.HashSecret(presentedSecret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventRefreshRejected, IP: sourceIP, Error: "unknown_token"})
			return nil, common.ErrInvalidOrInactiveRefreshToken
		}
		return nil, storeError(err)
	}

	if !current.IsActive(now) {
		switch {
		case e.lostRace(current, now):
			e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventRefreshRejected, UserID: current.UserID, TokenID: current.ID, IP: sourceIP, Error: "concurrent_rotation"})
			return nil, common.ErrConcurrentRotationLost
		case current.WasRotated():
			e.revokeChain(ctx, current, sourceIP, now)
		default:
			e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventRefreshRejected, UserID: current.UserID, TokenID: current.ID, IP: sourceIP, Error: inactiveReason(current, now)})
		}
		return nil, common.ErrInvalidOrInactiveRefreshToken
	}

	// roles are re-read so that grants and removals since login take effect
	identity, err := e.identity.Lookup(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrInactiveRefreshToken
		}
		return nil, storeError(err)
	}

	access, err := e.minter.Mint(identity.SubjectID, identity.DisplayName, identity.Roles, now)
	if err != nil {
		return nil, err
	}

	var successor *models.RefreshToken
	err = e.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		next, err := e.issue(ctx, repos, current.UserID, sourceIP, now)
		if err != nil {
			return err
		}
		won, err := repos.RefreshTokens().Revoke(ctx, current.ID, now, sourceIP, &next.ID)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrConcurrentRotationLost
		}
		successor = next
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConcurrentRotationLost) {
			e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventRefreshRejected, UserID: current.UserID, TokenID: current.ID, IP: sourceIP, Error: "concurrent_rotation"})
			return nil, err
		}
		return nil, storeError(err)
	}

	e.emit(ctx, audit.Event{
		Timestamp: now,
		EventType: audit.EventRefreshRotated,
		UserID:    current.UserID,
		TokenID:   current.ID,
		IP:        sourceIP,
		Success:   true,
		Metadata:  map[string]string{"replaced_by": successor.ID},
	})
	e.logger.Debug(ctx, "refresh token rotated", "user_id", current.UserID, "token_id", current.ID, "replaced_by", successor.ID)

	return &models.TokenPair{AccessToken: access, RefreshToken: successor.Secret, ExpiresIn: e.minter.Lifetime()}, nil
}

// Revoke is idempotent: unknown, expired and already revoked tokens are
// acknowledged without any change.
func (e *Engine) Revoke(ctx context.Context, presentedSecret, sourceIP string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	sourceIP = normalizeIP(sourceIP)
	now := e.clock.Now()

	if presentedSecret == "" {
		return nil
	}

	repo := e.repomanager.RefreshTokens()
	current, err := repo.FindByHash(ctx, common.HashSecret(presentedSecret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return storeError(err)
	}
	if !current.IsActive(now) {
		return nil
	}

	revoked, err := repo.Revoke(ctx, current.ID, now, sourceIP, nil)
	if err != nil {
		return storeError(err)
	}
	if revoked {
		e.emit(ctx, audit.Event{Timestamp: now, EventType: audit.EventRefreshRevoked, UserID: current.UserID, TokenID: current.ID, IP: sourceIP, Success: true})
	}
	return nil
}

// RevokeAll ends every active session of subjectID and reports how many
// tokens were revoked.
func (e *Engine) RevokeAll(ctx context.Context, subjectID, sourceIP string) (int64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	sourceIP = normalizeIP(sourceIP)
	now := e.clock.Now()

	n, err := e.repomanager.RefreshTokens().RevokeAllForUser(ctx, subjectID, now, sourceIP)
	if err != nil {
		return 0, storeError(err)
	}
	e.emit(ctx, audit.Event{
		Timestamp: now,
		EventType: audit.EventSessionsRevoked,
		UserID:    subjectID,
		IP:        sourceIP,
		Success:   true,
		Metadata:  map[string]string{"revoked": strconv.FormatInt(n, 10)},
	})
	return n, nil
}

// Sessions lists the active refresh tokens of subjectID, newest first.
// Secrets are never part of the result.
func (e *Engine) Sessions(ctx context.Context, subjectID string) ([]*models.RefreshToken, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	list, err := e.repomanager.RefreshTokens().ListActiveByUser(ctx, subjectID, e.clock.Now())
	if err != nil {
		return nil, storeError(err)
	}
	for _, t := range list {
		t.Secret = ""
		t.TokenHash = ""
	}
	return list, nil
}

func (e *Engine) issue(ctx context.Context, repos repomanager.Repositories, subjectID, sourceIP string, now time.Time) (*models.RefreshToken, error) {
	secret, err := common.MakeRandBase64String(secretSize)
	if err != nil {
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	token := &models.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      subjectID,
		TokenHash:   common.HashSecret(secret),
		Secret:      secret,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.config.RefreshTokenLifetime),
		CreatedByIP: sourceIP,
	}
	if err := repos.RefreshTokens().Create(ctx, token); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: refresh secret collision", common.ErrorInternal)
		}
		return nil, storeError(err)
	}
	return token, nil
}

// lostRace reports a token rotated so recently that presenting it again is a
// duplicate of the winning request rather than a stolen secret.
func (e *Engine) lostRace(t *models.RefreshToken, now time.Time) bool {
	if !t.WasRotated() || t.RevokedAt == nil || e.config.ReuseGrace <= 0 {
		return false
	}
	return now.Sub(*t.RevokedAt) < e.config.ReuseGrace
}

// revokeChain reacts to a replayed rotated token by ending every session of
// its subject. Failures are logged; the caller is rejected regardless.
func (e *Engine) revokeChain(ctx context.Context, replayed *models.RefreshToken, sourceIP string, now time.Time) {
	n, err := e.repomanager.RefreshTokens().RevokeAllForUser(ctx, replayed.UserID, now, sourceIP)
	event := audit.Event{
		Timestamp: now,
		EventType: audit.EventRefreshReuseDetected,
		UserID:    replayed.UserID,
		TokenID:   replayed.ID,
		IP:        sourceIP,
		Metadata:  map[string]string{"revoked": strconv.FormatInt(n, 10)},
	}
	if err != nil {
		event.Error = err.Error()
		e.logger.Error(ctx, "chain revocation failed", "user_id", replayed.UserID, "error", err)
	}
	e.emit(ctx, event)
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	e.audit.Emit(ctx, event)
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.StoreTimeout)
}

// storeError keeps lifecycle sentinels intact and marks transport-level
// failures as common.ErrStoreUnavailable.
func storeError(err error) error {
	classified := dbx.Classify(err)
	if errors.Is(classified, common.ErrStoreUnavailable) {
		return classified
	}
	return fmt.Errorf("token store: %w", err)
}

func inactiveReason(t *models.RefreshToken, now time.Time) string {
	if t.IsRevoked() {
		return "revoked"
	}
	if t.IsExpired(now) {
		return "expired"
	}
	return "inactive"
}

func normalizeIP(ip string) string {
	if ip == "" {
		return common.UnknownIP
	}
	return ip
}
