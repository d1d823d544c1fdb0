// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"

	"github.com/studentdiary/diary/internal/auth"
)

// memRepo is an in-memory UserRepository with the same uniqueness and
// versioning rules as the postgres implementation.
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]auth.User
	saves  int
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[int64]auth.User)}
}

func (r *memRepo) conflicts(u *auth.User) bool {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) || strings.EqualFold(other.Email, u.Email) {
			return true
		}
	}
	return false
}

func (r *memRepo) Create(_ context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(u) {
		return auth.ErrDuplicate
	}
	r.nextID++
	u.ID = r.nextID
	u.Version = 1
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) find(match func(auth.User) bool) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.ID == id })
}

func (r *memRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *memRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	return r.find(func(u auth.User) bool {
		return tokenHash != "" && u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash
	})
}

func (r *memRepo) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Save(_ context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[u.ID]
	if !ok {
		return auth.ErrNotFound
	}
	if current.Version != u.Version {
		return auth.ErrConflict
	}
	if r.conflicts(u) {
		return auth.ErrDuplicate
	}
	u.Version++
	r.users[u.ID] = *u
	r.saves++
	return nil
}

// get returns a copy of the stored record for assertions.
func (r *memRepo) get(id int64) auth.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

var _ auth.UserRepository = (*memRepo)(nil)
