// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"time"
)

// FailureKind classifies an expected (non-fatal) failure of a Service operation.
type FailureKind string

// Failure kinds. KindNone accompanies successful results.
const (
	KindNone                FailureKind = ""
	KindValidation          FailureKind = "validation_error"
	KindPasswordMismatch    FailureKind = "password_mismatch"
	KindDuplicateCredential FailureKind = "duplicate_credential"
	KindInvalidCredentials  FailureKind = "invalid_credentials"
	KindAccountLocked       FailureKind = "account_locked"
	KindInvalidToken        FailureKind = "invalid_token"
	KindTokenExpired        FailureKind = "token_expired"
	KindNotFound            FailureKind = "not_found"
)

// IsValidation reports whether k is a caller input problem.
// A password mismatch is a validation failure with its own kind.
func (k FailureKind) IsValidation() bool {
	return k == KindValidation || k == KindPasswordMismatch
}

// User-facing messages. Login failures share one message so callers cannot
// tell an unknown username from a wrong password.
const (
	MsgRegistered          = "User registered successfully."
	MsgPasswordMismatch    = "Passwords do not match."
	MsgDuplicateCredential = "Username or email already exists."
	MsgInvalidCredentials  = "Invalid username or password."
	MsgLoginSuccessful     = "Login successful."
	MsgResetRequested      = "If an account with that email exists, a reset link has been sent."
	MsgInvalidToken        = "Invalid or expired token."
	MsgTokenExpired        = "Token has expired."
	MsgPasswordReset       = "Password has been reset."
	MsgUserNotFound        = "User not found."
	MsgEmailInUse          = "Email is already in use."
	MsgProfileUpdated      = "Profile updated."
	MsgPictureUpdated      = "Profile picture updated."
	MsgPasswordRequired    = "Password cannot be empty."
)

// Result is the outcome of an operation that returns no payload.
type Result struct {
	OK      bool
	Kind    FailureKind
	Message string
}

func succeed(msg string) Result {
	return Result{OK: true, Message: msg}
}

func fail(kind FailureKind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}

// Profile is the public view of a user. It never carries credential material.
type Profile struct {
	ID                 int64
	Username           string
	Email              string
	FirstName          string
	LastName           string
	ProfilePicturePath string
	CreatedAt          time.Time
}

// Identity is the typed value a session layer stores after a successful login.
type Identity struct {
	UserID   int64
	Username string
}

// LoginResult is returned by Service.Login.
// Profile and Identity are set only when OK is true; LockedUntil only for KindAccountLocked.
type LoginResult struct {
	Result
	Profile     *Profile
	Identity    *Identity
	LockedUntil *time.Time
}

// ProfileResult is returned by Service.GetProfile.
type ProfileResult struct {
	Result
	Profile *Profile
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
