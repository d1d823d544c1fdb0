// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentdiary/diary/pkg/errutil"
)

type fakeRunner struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	srcCloseErr, dbCloseErr            error

	steps  []int
	forced []int
}

func (f *fakeRunner) Up() error   { return f.upErr }
func (f *fakeRunner) Down() error { return f.downErr }
func (f *fakeRunner) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}
func (f *fakeRunner) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeRunner) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.forceErr
}
func (f *fakeRunner) Close() (error, error) { return f.srcCloseErr, f.dbCloseErr }

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/diary", migrateURL("postgres://u:p@db:5432/diary"))
	assert.Equal(t, "pgx5://db/diary", migrateURL("postgresql://db/diary"))
	assert.Equal(t, "pgx5://db/diary", migrateURL("pgx5://db/diary"))
}

func TestNewMigrator_BadScheme(t *testing.T) {
	_, err := NewMigrator("mysql://localhost/diary")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_ErrNoChangeIsSuccess(t *testing.T) {
	r := &fakeRunner{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}
	m := &Migrator{runner: r}

	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(0))
}

func TestMigrator_Errors(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		run  func(*Migrator) error
		code string
	}{
		{"up", (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"force", func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"version", func(m *Migrator) error { _, _, err := m.Version(); return err }, "MIGRATION_VERSION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{runner: &fakeRunner{
				upErr: boom, downErr: boom, stepsErr: boom, forceErr: boom, versionErr: boom,
			}}
			err := tt.run(m)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{runner: &fakeRunner{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{runner: &fakeRunner{version: 1, dirty: true}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)
}

func TestMigrator_Force(t *testing.T) {
	r := &fakeRunner{}
	m := &Migrator{runner: r}

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
	assert.Empty(t, r.forced, "negative version never reaches the runner")

	require.NoError(t, m.Force(1))
	assert.Equal(t, []int{1}, r.forced)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{runner: &fakeRunner{}}).Close())

	src := errors.New("source")
	db := errors.New("db")
	err := (&Migrator{runner: &fakeRunner{srcCloseErr: src, dbCloseErr: db}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	assert.ErrorIs(t, err, src)
	assert.ErrorIs(t, err, db)
}

func TestMigrations_Embedded(t *testing.T) {
	migs, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, Migration{Version: 1, Name: "000001_create_users"}, migs[0])

	for i := 1; i < len(migs); i++ {
		assert.Less(t, migs[i-1].Version, migs[i].Version)
	}
}

func TestMigrator_Status(t *testing.T) {
	st, err := (&Migrator{runner: &fakeRunner{versionErr: migrate.ErrNilVersion}}).Status()
	require.NoError(t, err)
	assert.Empty(t, st.Applied)
	assert.NotEmpty(t, st.Pending)

	st, err = (&Migrator{runner: &fakeRunner{version: 1}}).Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.Equal(t, "000001_create_users", st.Applied[0].Name)
}
