package store

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockPersister(t *testing.T) (*Persister, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPersister(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetAdminByUsernameNotFound(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM admin_users WHERE username = $1`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := p.GetAdminByUsername("nobody")
	require.True(t, errors.Is(err, apperr.NotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdminByUsernameFound(t *testing.T) {
	p, mock := newMockPersister(t)
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at", "updated_at"}).
		AddRow(int32(1), "admin", "hash", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM admin_users WHERE username = $1`)).
		WithArgs("admin").
		WillReturnRows(rows)

	u, err := p.GetAdminByUsername("admin")
	require.NoError(t, err)
	require.Equal(t, "admin", u.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAdmins(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM admin_users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	n, err := p.CountAdmins()
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdmin(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO admin_users (username, password_hash) VALUES ($1, $2)`)).
		WithArgs("admin", "hashed").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, p.CreateAdmin("admin", "hashed"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogAdminActionSwallowsError(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectExec(`INSERT INTO admin_logs`).WillReturnError(errors.New("boom"))

	// LogAdminAction never returns an error; a failed audit write must not crash
	// the caller's request handling.
	p.LogAdminAction("login", "details", "127.0.0.1")
}
