package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

// NOTE: expected table schema (Postgres example):
// CREATE TABLE sessions (
//   id VARCHAR(27) PRIMARY KEY,
//   token TEXT NOT NULL UNIQUE,
//   identity_id BIGINT NOT NULL REFERENCES identities(id),
//   expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
//   created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
// );
// CREATE INDEX idx_sessions_expires_at ON sessions (expires_at);

// ErrNotFound is returned when the token has no session row.
var ErrNotFound = errors.New("session not found")

// Row mirrors a sessions table row.
type Row struct {
	ID         string    `db:"id"`
	Token      string    `db:"token"`
	IdentityID int64     `db:"identity_id"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

type SessionRepo struct {
	store *database.Store
}

func NewSessionRepo(store *database.Store) *SessionRepo {
	return &SessionRepo{store: store}
}

func (r *SessionRepo) Save(ctx context.Context, row Row) error {
	const q = `INSERT INTO sessions (id, token, identity_id, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.store.Execute(ctx, q, row.ID, row.Token, row.IdentityID, row.ExpiresAt, row.CreatedAt)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*Row, error) {
	const q = `SELECT id, token, identity_id, expires_at, created_at FROM sessions WHERE token = $1`
	var row Row
	if err := r.store.Get(ctx, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Delete removes the session; deleting an unknown token is not an error.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.store.Execute(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// DeleteExpired removes every session whose expiry is before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.Execute(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
}
