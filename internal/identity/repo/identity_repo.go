package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

// NOTE: expected table schema (Postgres example):
// CREATE TABLE identities (
//   id BIGSERIAL PRIMARY KEY,
//   username TEXT NOT NULL UNIQUE,
//   email CITEXT NOT NULL UNIQUE,
//   password_hash TEXT NOT NULL,
//   full_name TEXT NOT NULL DEFAULT '',
//   phone_number TEXT,
//   role TEXT NOT NULL CHECK (role IN ('admin','seller','customer')),
//   status TEXT NOT NULL DEFAULT 'active',
//   last_login_at TIMESTAMPTZ,
//   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
// );

// ErrNotFound is returned when no identity matches.
var ErrNotFound = errors.New("identity not found")

const columns = `id, username, email, password_hash, full_name, phone_number,
	role, status, last_login_at, created_at, updated_at`

// IdentityRepo provides data access for the identities table.
type IdentityRepo struct {
	store *database.Store
}

func NewIdentityRepo(store *database.Store) *IdentityRepo { return &IdentityRepo{store: store} }

// Create inserts a new identity row. Returns new ID.
func (r *IdentityRepo) Create(ctx context.Context, u *entity.Identity) (int64, error) {
	const q = `INSERT INTO identities (username, email, password_hash, full_name, phone_number, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.store.Get(ctx, &u.ID, q,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.PhoneNumber, u.Role, u.Status); err != nil {
		return 0, err
	}
	return u.ID, nil
}

// GetByIdentifier matches either username or email (case-insensitive via citext).
func (r *IdentityRepo) GetByIdentifier(ctx context.Context, identifier string) (*entity.Identity, error) {
	q := `SELECT ` + columns + ` FROM identities WHERE username = $1 OR email = $1 LIMIT 1`
	return r.getOne(ctx, q, identifier)
}

// GetByID fetches a full identity row.
func (r *IdentityRepo) GetByID(ctx context.Context, id int64) (*entity.Identity, error) {
	q := `SELECT ` + columns + ` FROM identities WHERE id = $1`
	return r.getOne(ctx, q, id)
}

func (r *IdentityRepo) getOne(ctx context.Context, q string, arg any) (*entity.Identity, error) {
	var row entity.Identity
	if err := r.store.Get(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Exists reports whether the username or email is already taken.
func (r *IdentityRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM identities WHERE username = $1 OR email = $2)`
	var ok bool
	if err := r.store.Get(ctx, &ok, q, username, email); err != nil {
		return false, err
	}
	return ok, nil
}

// TouchLastLogin records a successful authentication.
func (r *IdentityRepo) TouchLastLogin(ctx context.Context, id int64) error {
	const q = `UPDATE identities SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := r.store.Execute(ctx, q, id)
	return err
}

// SetStatus changes the account status; returns false when no row matched.
func (r *IdentityRepo) SetStatus(ctx context.Context, id int64, status entity.Status) (bool, error) {
	const q = `UPDATE identities SET status = $2, updated_at = NOW() WHERE id = $1`
	n, err := r.store.Execute(ctx, q, id, status)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ApprovePendingSeller activates a seller only while it is still pending.
func (r *IdentityRepo) ApprovePendingSeller(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE identities SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND role = 'seller' AND status = 'pending'`
	n, err := r.store.Execute(ctx, q, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdatePassword replaces the stored hash.
func (r *IdentityRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE identities SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.store.Execute(ctx, q, id, hash)
	return err
}
