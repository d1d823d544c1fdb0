// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import "errors"

// Sentinel errors surfaced by UserRepository implementations.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write would violate username or email uniqueness.
	ErrDuplicate = errors.New("duplicate credential")

	// ErrConflict is returned when a save is based on a stale copy of the record.
	ErrConflict = errors.New("concurrent modification")

	// ErrStorage marks every error a Service operation returns because the
	// repository failed. Expected failures are reported in a Result instead.
	ErrStorage = errors.New("storage failure")
)

// Error codes attached to oops errors returned by this package.
const (
	CodeStorageFailure = "AUTH_STORAGE_FAILURE"
	CodeInvalidHash    = "AUTH_INVALID_HASH"
	CodeEmptyPassword  = "AUTH_EMPTY_PASSWORD"
	CodeTokenGenerate  = "AUTH_TOKEN_GENERATE_FAILED"
	CodeLockFailed     = "AUTH_LOCK_FAILED"
)
