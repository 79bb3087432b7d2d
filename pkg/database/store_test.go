package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestExecuteReturnsRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM sessions").
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Execute(context.Background(), "DELETE FROM sessions WHERE token = $1", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteWrapsDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)
	driverErr := errors.New("connection reset")
	mock.ExpectExec("UPDATE orders").WillReturnError(driverErr)

	_, err := s.Execute(context.Background(), "UPDATE orders SET status = $1", "ready")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, driverErr)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "execute", se.Op)
}

func TestQueryReturnsColumnMaps(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT market_id").
		WillReturnRows(sqlmock.NewRows([]string{"market_id", "market_name", "avg_price"}).
			AddRow(int64(2), "Kimironko", []byte("475.50")).
			AddRow(int64(3), "Nyabugogo", 440.0))

	rows, err := s.Query(context.Background(), "SELECT market_id, market_name, avg_price FROM x")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].Int64("market_id"))
	assert.Equal(t, "Kimironko", rows[0].String("market_name"))
	assert.InDelta(t, 475.5, rows[0].Float64("avg_price"), 1e-9)
	assert.InDelta(t, 440.0, rows[1].Float64("avg_price"), 1e-9)
}

func TestGetPassesNoRowsThrough(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var id int64
	err := s.Get(context.Background(), &id, "SELECT id FROM identities WHERE id = $1", 1)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.False(t, errors.Is(err, ErrStorage))
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "INSERT INTO orders (id) VALUES ($1)", 1)
		return err
	})
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommits(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "INSERT INTO orders (id) VALUES ($1)", 1)
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
