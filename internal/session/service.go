package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	idrepo "github.com/ovaphlow/pitchfork/service-market-core/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

// IdentityStore is the identity lookup the registry needs.
type IdentityStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*entity.Identity, error)
	GetByID(ctx context.Context, id int64) (*entity.Identity, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// SessionStore persists session rows.
type SessionStore interface {
	Save(ctx context.Context, row repo.Row) error
	Get(ctx context.Context, token string) (*repo.Row, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrAccountPending     = errors.New("account pending approval")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Registry issues, validates and expires session tokens.
type Registry struct {
	identities IdentityStore
	sessions   SessionStore
	hasher     identity.PasswordHasher
	logger     *zap.SugaredLogger

	// configuration knobs
	Clock    clockwork.Clock
	Throttle *LoginThrottle
}

func NewRegistry(identities IdentityStore, sessions SessionStore, hasher identity.PasswordHasher, logger *zap.SugaredLogger) *Registry {
	if hasher == nil {
		hasher = identity.BcryptHasher{Cost: 12}
	}
	return &Registry{
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		logger:     utilities.OrNop(logger),
		Clock:      clockwork.NewRealClock(),
	}
}

// Authenticate verifies the password of the identity matched by username or
// email and opens a session expiring exactly TTL after issuance.
//
// The password is checked before the account status so pending or suspended
// accounts are only revealed to callers holding the right password.
func (r *Registry) Authenticate(ctx context.Context, identifier, password string) (*entity.Identity, *Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil, r.loginFailed(identifier, ErrInvalidCredentials)
	}
	if !r.Throttle.Allow(identifier) {
		return nil, nil, r.loginFailed(identifier, ErrTooManyAttempts)
	}

	u, err := r.identities.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, idrepo.ErrNotFound) {
			return nil, nil, r.loginFailed(identifier, ErrInvalidCredentials)
		} // avoid user enumeration
		return nil, nil, err
	}
	if u.Status == entity.StatusDeleted || u.PasswordHash == "" {
		return nil, nil, r.loginFailed(identifier, ErrInvalidCredentials)
	}
	if !r.hasher.Verify(u.PasswordHash, password) {
		return nil, nil, r.loginFailed(identifier, ErrInvalidCredentials)
	}
	switch u.Status {
	case entity.StatusActive:
	case entity.StatusSuspended:
		return nil, nil, r.loginFailed(identifier, ErrAccountSuspended)
	case entity.StatusPending:
		return nil, nil, r.loginFailed(identifier, ErrAccountPending)
	default:
		return nil, nil, r.loginFailed(identifier, ErrInvalidCredentials)
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, fmt.Errorf("generate session token: %w", err)
	}
	if err := r.identities.TouchLastLogin(ctx, u.ID); err != nil {
		return nil, nil, err
	}
	now := r.Clock.Now()
	row := repo.Row{
		ID:         utilities.NewKSUID(),
		Token:      token,
		IdentityID: u.ID,
		ExpiresAt:  now.Add(TTL),
		CreatedAt:  now,
	}
	if err := r.sessions.Save(ctx, row); err != nil {
		return nil, nil, err
	}
	u.LastLoginAt = &now

	metrics.ObserveLogin("success")
	r.logger.Infow("login succeeded", "identity_id", u.ID, "session_id", row.ID, "expires_at", row.ExpiresAt)
	s := fromRow(row)
	return u, &s, nil
}

func (r *Registry) loginFailed(identifier string, err error) error {
	metrics.ObserveLogin(outcome(err))
	r.logger.Debugw("login failed", "identifier", identifier, "err", err)
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAccountSuspended):
		return "suspended"
	case errors.Is(err, ErrAccountPending):
		return "pending"
	case errors.Is(err, ErrTooManyAttempts):
		return "throttled"
	default:
		return "invalid_credentials"
	}
}

// Validate resolves a token to its identity. A session is usable until its
// expiry timestamp; validation never extends it.
func (r *Registry) Validate(ctx context.Context, token string) (*entity.Identity, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	row, err := r.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s := fromRow(*row)
	if s.ExpiredAt(r.Clock.Now()) {
		return nil, ErrSessionExpired
	}
	u, err := r.identities.GetByID(ctx, row.IdentityID)
	if err != nil {
		if errors.Is(err, idrepo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	switch u.Status {
	case entity.StatusActive:
		return u, nil
	case entity.StatusSuspended:
		return nil, ErrAccountSuspended
	case entity.StatusPending:
		return nil, ErrAccountPending
	default:
		return nil, ErrSessionNotFound
	}
}

// Revoke deletes the session. Unknown tokens are ignored.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return r.sessions.Delete(ctx, token)
}

// SweepExpired deletes every session whose expiry has passed and drops idle
// login throttle buckets.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	if pruned := r.Throttle.Prune(); pruned > 0 {
		r.logger.Debugw("login throttle pruned", "buckets", pruned, "remaining", r.Throttle.Len())
	}
	n, err := r.sessions.DeleteExpired(ctx, r.Clock.Now())
	if err != nil {
		return 0, err
	}
	metrics.ObserveSweep(n)
	return n, nil
}

// newToken returns 256 bits from crypto/rand, base64url encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func fromRow(row repo.Row) Session {
	return Session{
		ID:         row.ID,
		Token:      row.Token,
		IdentityID: row.IdentityID,
		ExpiresAt:  row.ExpiresAt,
		CreatedAt:  row.CreatedAt,
	}
}
