// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"time"
)

// Lockout policy. Fixed for the application; exported for tests.
const (
	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 3

	// LockoutDuration is how long a lockout rejects every login attempt.
	LockoutDuration = 15 * time.Minute
)

// LockoutState is the lockout state of an account at a given instant.
type LockoutState int

// Lockout states.
const (
	// StateActive has no recorded failures and no lockout in force.
	StateActive LockoutState = iota
	// StateWarned has between 1 and LockoutThreshold-1 recorded failures.
	StateWarned
	// StateLocked has a lockout end in the future.
	StateLocked
)

func (s LockoutState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarned:
		return "warned"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// IsLockedOut returns true if lockoutEnd is set and after now.
// A lockout end in the past is the same as no lockout.
func IsLockedOut(lockoutEnd *time.Time, now time.Time) bool {
	return lockoutEnd != nil && lockoutEnd.After(now)
}

// LockoutState returns the state of u at now.
func (u *User) LockoutState(now time.Time) LockoutState {
	switch {
	case IsLockedOut(u.LockoutEnd, now):
		return StateLocked
	case u.FailedLoginAttempts > 0:
		return StateWarned
	default:
		return StateActive
	}
}

// IsLocked returns true if u is locked out at now.
func (u *User) IsLocked(now time.Time) bool {
	return IsLockedOut(u.LockoutEnd, now)
}

// RecordFailure applies a failed credential check.
// When the counter reaches LockoutThreshold the account is locked until
// now+LockoutDuration and the counter restarts at zero. Returns true if
// this failure imposed the lockout.
//
// The counter restarts when the lockout is imposed, not when it expires.
func (u *User) RecordFailure(now time.Time) bool {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts < LockoutThreshold {
		return false
	}
	end := now.Add(LockoutDuration).UTC()
	u.LockoutEnd = &end
	u.FailedLoginAttempts = 0
	return true
}

// RecordSuccess applies a successful login.
func (u *User) RecordSuccess(now time.Time) {
	u.ClearLockout()
	u.LastLoginAt = now.UTC()
}

// ClearLockout resets the failure counter and removes any lockout.
func (u *User) ClearLockout() {
	u.FailedLoginAttempts = 0
	u.LockoutEnd = nil
}
