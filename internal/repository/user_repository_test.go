package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gate/internal/domain"
)

var userCols = []string{"id", "username", "email", "first_name", "last_name", "is_verified", "password_hash", "role", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email=\$1`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u-1", "alice", "alice@example.com", "Alice", "Liddell", true, "hash", domain.RoleAdmin, now, now))

	user, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.True(t, user.IsVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email=\$1`).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	user := &domain.User{ID: "u-1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: domain.RoleUser}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("u-1", "alice", "alice@example.com", "", "", false, "hash", domain.RoleUser).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, now, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &domain.User{ID: "u-2", Email: "alice@example.com", Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "u-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &domain.User{ID: "u-404", Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs("u-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs("u-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListNewestFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u-2", "bob", "bob@example.com", "", "", false, "h", domain.RoleUser, newer, newer).
			AddRow("u-1", "alice", "alice@example.com", "", "", false, "h", domain.RoleAdmin, older, older))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-2", users[0].ID)
	assert.Equal(t, "u-1", users[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
