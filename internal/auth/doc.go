// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

// Package auth provides the account-security core of StudentDiary.
//
// # Domain Types
//
// User is the account record. New records should be created with NewUser,
// which stamps the audit timestamps and zeroes the security fields.
// Lockout transitions (RecordFailure, RecordSuccess, ClearLockout) and
// reset token handling (SetResetToken, ClearResetToken) are methods on User
// that take the current time explicitly.
//
// # Services
//
// Service coordinates registration, login with lockout, forgot/reset
// password and profile updates against a UserRepository. Expected failures
// come back as a Result with OK=false, a FailureKind and a user-facing
// message; only storage faults are returned as errors (code
// AUTH_STORAGE_FAILURE).
//
// # Collaborators
//
//   - UserRepository - persistence (see package postgres)
//   - PasswordHasher - argon2id with lazy upgrade of legacy digests
//   - ResetNotifier - delivers reset tokens; the core only issues them
//   - UserLocker - optional cross-process serialization (see package redislock)
//
// Sessions are not managed here. On a successful Login the caller stores
// the returned Identity in its own session mechanism.
package auth
