package app

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/session"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

func newStore(t *testing.T) (*database.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestNewRejectsBadSchedule(t *testing.T) {
	store, _ := newStore(t)
	_, err := New(store, Options{SweepSchedule: "whenever"}, nil)
	assert.Error(t, err)
}

func TestLoginThroughWiredCore(t *testing.T) {
	store, mock := newStore(t)
	hasher := identity.BcryptHasher{Cost: 4}
	core, err := New(store, Options{Hasher: hasher}, nil)
	require.NoError(t, err)

	hash, _, err := hasher.Hash("password123")
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery(`FROM identities WHERE username = \$1 OR email = \$1`).
		WithArgs("jean").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "full_name", "phone_number",
			"role", "status", "last_login_at", "created_at", "updated_at"}).
			AddRow(int64(2), "jean", "jean@example.com", hash, "Jean", nil, "customer", "active", nil, now, now))
	mock.ExpectExec(`UPDATE identities SET last_login_at`).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sessions`).WillReturnResult(sqlmock.NewResult(0, 1))

	u, s, err := core.Sessions.Authenticate(context.Background(), "jean", "password123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)
	assert.Equal(t, session.TTL, s.ExpiresAt.Sub(s.CreatedAt))
	assert.NotNil(t, core.Catalog)
	assert.NoError(t, mock.ExpectationsWereMet())
}
