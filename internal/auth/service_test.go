package auth

import (
	"os"
	"testing"
	"time"

	"inkwell/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func TestRegisterDuplicateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, NewVerifier("test-secret", time.Hour))

	mock.ExpectQuery("SELECT id FROM users WHERE username = \\$1 OR email = \\$2").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	_, _, err = svc.Register("alice", "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	v := NewVerifier("test-secret", time.Hour)
	svc := NewService(db, v)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, username, password_hash FROM users WHERE username = \\$1 OR email = \\$1").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).
			AddRow("user-1", "alice", string(hash)))
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ident, token, err := svc.Login("alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident.ID)

	// The minted token must verify back to the same identity.
	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, ident, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, NewVerifier("test-secret", time.Hour))

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, username, password_hash FROM users").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).
			AddRow("user-1", "alice", string(hash)))

	_, _, err = svc.Login("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
