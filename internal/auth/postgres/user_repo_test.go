// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentdiary/diary/internal/auth"
	"github.com/studentdiary/diary/pkg/errutil"
)

var userColumns = []string{
	"id", "username", "email", "password_hash",
	"first_name", "last_name", "profile_picture_path",
	"failed_login_attempts", "lockout_end",
	"reset_token_hash", "reset_token_expiry",
	"created_at", "last_login_at", "version",
}

var created = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func aliceRow() *pgxmock.Rows {
	end := created.Add(15 * time.Minute)
	return pgxmock.NewRows(userColumns).AddRow(
		int64(7), "alice", "alice@x.com", "digest",
		"Alice", "", "",
		2, &end,
		(*string)(nil), (*time.Time)(nil),
		created, created, int64(3),
	)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_lower_idx"}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("ALICE").
					WillReturnRows(aliceRow())
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("ALICE").
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "USER_NOT_FOUND",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("ALICE").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_GET_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			user, err := NewUserRepository(mock).GetByUsername(context.Background(), "ALICE")
			if tt.wantCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, user)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(7), user.ID)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, 2, user.FailedLoginAttempts)
			require.NotNil(t, user.LockoutEnd)
			assert.True(t, user.LockoutEnd.Equal(created.Add(15*time.Minute)))
			assert.Nil(t, user.ResetTokenHash)
			assert.Nil(t, user.ResetTokenExpiry)
			assert.Equal(t, int64(3), user.Version)
		})
	}
}

func TestUserRepository_GetByIDAndEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(int64(7)).WillReturnRows(aliceRow())
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).WithArgs("alice@x.com").WillReturnRows(aliceRow())
	repo := NewUserRepository(mock)

	byID, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	byEmail, err := repo.GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, byID, byEmail)
}

func TestUserRepository_GetByResetTokenHash(t *testing.T) {
	t.Run("empty hash never matches", func(t *testing.T) {
		mock := newMock(t)
		_, err := NewUserRepository(mock).GetByResetTokenHash(context.Background(), "")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("lookup by hash", func(t *testing.T) {
		mock := newMock(t)
		hash := "abc123"
		expiry := created.Add(time.Hour)
		rows := pgxmock.NewRows(userColumns).AddRow(
			int64(7), "alice", "alice@x.com", "digest",
			"", "", "",
			0, (*time.Time)(nil),
			&hash, &expiry,
			created, created, int64(1),
		)
		mock.ExpectQuery(`FROM users WHERE reset_token_hash = \$1`).WithArgs(hash).WillReturnRows(rows)

		user, err := NewUserRepository(mock).GetByResetTokenHash(context.Background(), hash)
		require.NoError(t, err)
		require.NotNil(t, user.ResetTokenHash)
		assert.Equal(t, hash, *user.ResetTokenHash)
		require.NotNil(t, user.ResetTokenExpiry)
		assert.True(t, user.ResetTokenExpiry.Equal(expiry))
	})

	t.Run("no holder", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM users WHERE reset_token_hash = \$1`).WithArgs("gone").
			WillReturnRows(pgxmock.NewRows(userColumns))

		_, err := NewUserRepository(mock).GetByResetTokenHash(context.Background(), "gone")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})
}

func TestUserRepository_Create(t *testing.T) {
	newUser := func() *auth.User {
		u, err := auth.NewUser("alice", "alice@x.com", "digest", created)
		require.NoError(t, err)
		return u
	}

	t.Run("assigns id and version", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("alice", "alice@x.com", "digest", "", "", "", 0,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), created, created).
			WillReturnRows(pgxmock.NewRows([]string{"id", "version"}).AddRow(int64(11), int64(1)))

		u := newUser()
		require.NoError(t, NewUserRepository(mock).Create(context.Background(), u))
		assert.Equal(t, int64(11), u.ID)
		assert.Equal(t, int64(1), u.Version)
	})

	t.Run("unique violation", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(uniqueViolation())

		err := NewUserRepository(mock).Create(context.Background(), newUser())
		assert.ErrorIs(t, err, auth.ErrDuplicate)
		errutil.AssertErrorCode(t, err, "USER_DUPLICATE")
	})

	t.Run("other failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		err := NewUserRepository(mock).Create(context.Background(), newUser())
		errutil.AssertErrorCode(t, err, "USER_CREATE_FAILED")
		assert.NotErrorIs(t, err, auth.ErrDuplicate)
	})
}

func TestUserRepository_EmailTaken(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("bob@x.com", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := NewUserRepository(mock).EmailTaken(context.Background(), "bob@x.com", 7)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUserRepository_Save(t *testing.T) {
	saveArgs := func(id, version int64) []any {
		args := []any{id, version}
		for range 11 {
			args = append(args, pgxmock.AnyArg())
		}
		return args
	}

	t.Run("bumps version", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).WithArgs(saveArgs(7, 3)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		u := &auth.User{ID: 7, Version: 3}
		require.NoError(t, NewUserRepository(mock).Save(context.Background(), u))
		assert.Equal(t, int64(4), u.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).WithArgs(saveArgs(7, 2)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		u := &auth.User{ID: 7, Version: 2}
		err := NewUserRepository(mock).Save(context.Background(), u)
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorCode(t, err, "USER_VERSION_CONFLICT")
		assert.Equal(t, int64(2), u.Version)
	})

	t.Run("missing user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).WithArgs(saveArgs(9, 1)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(int64(9)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		err := NewUserRepository(mock).Save(context.Background(), &auth.User{ID: 9, Version: 1})
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("email collision", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).WithArgs(saveArgs(7, 3)...).
			WillReturnError(uniqueViolation())

		err := NewUserRepository(mock).Save(context.Background(), &auth.User{ID: 7, Version: 3})
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})
}
