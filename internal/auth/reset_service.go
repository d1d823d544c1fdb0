// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/studentdiary/diary/pkg/errutil"
)

// ForgotPassword issues a reset token for the account with the given email.
// It always succeeds with the same message whether or not the email is
// registered. The token reaches the user only through the ResetNotifier.
func (s *Service) ForgotPassword(ctx context.Context, email string) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ForgotPassword")
	defer func() { s.finish(ctx, span, OpForgotPassword, res, err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return succeed(MsgResetRequested), nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return succeed(MsgResetRequested), nil
		}
		return Result{}, storageErr("get user by email", err)
	}

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return Result{}, oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}

	userID := user.ID
	err = s.serialized(ctx, userKey(userID), func(ctx context.Context) error {
		if user == nil {
			fresh, getErr := s.users.GetByID(ctx, userID)
			if getErr != nil {
				return storageErr("get user by id", getErr)
			}
			user = fresh
		}
		user.SetResetToken(tokenHash, s.clock.Now().Add(ResetTokenTTL))
		if saveErr := s.users.Save(ctx, user); saveErr != nil {
			if errors.Is(saveErr, ErrConflict) {
				user = nil
			}
			return storageErr("save reset token", saveErr)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	notification := ResetNotification{
		ID:        ulid.Make(),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: *user.ResetTokenExpiry,
	}
	if notifyErr := s.notifier.NotifyPasswordReset(ctx, notification); notifyErr != nil {
		// Surfacing this would reveal that the email is registered.
		errutil.LogError(ctx, s.logger, "reset notification failed", oops.
			With("user_id", user.ID).
			With("notification_id", notification.ID.String()).
			Wrap(notifyErr))
	} else {
		s.logger.InfoContext(ctx, "password reset requested",
			"user_id", user.ID, "notification_id", notification.ID.String())
	}

	return succeed(MsgResetRequested), nil
}

// ResetPassword replaces the password of the account holding token.
// The token is consumed, and the failure counter and any lockout are cleared.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ResetPassword")
	defer func() { s.finish(ctx, span, OpResetPassword, res, err) }()

	if token == "" {
		return fail(KindInvalidToken, MsgInvalidToken), nil
	}
	tokenHash := HashResetToken(token)

	user, err := s.users.GetByResetTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(KindInvalidToken, MsgInvalidToken), nil
		}
		return Result{}, storageErr("get user by reset token", err)
	}
	if user.ResetTokenExpired(s.clock.Now()) {
		return fail(KindTokenExpired, MsgTokenExpired), nil
	}
	if newPassword == "" {
		return fail(KindValidation, MsgPasswordRequired), nil
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Result{}, oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = s.serialized(ctx, userKey(user.ID), func(ctx context.Context) error {
		if user == nil {
			// Re-read by token: a concurrent reset may have consumed it.
			fresh, getErr := s.users.GetByResetTokenHash(ctx, tokenHash)
			if getErr != nil {
				if errors.Is(getErr, ErrNotFound) {
					res = fail(KindInvalidToken, MsgInvalidToken)
					return nil
				}
				return storageErr("get user by reset token", getErr)
			}
			if fresh.ResetTokenExpired(s.clock.Now()) {
				res = fail(KindTokenExpired, MsgTokenExpired)
				return nil
			}
			user = fresh
		}

		user.PasswordHash = newHash
		user.ClearResetToken()
		user.ClearLockout()
		if saveErr := s.users.Save(ctx, user); saveErr != nil {
			if errors.Is(saveErr, ErrConflict) {
				user = nil
			}
			return storageErr("save password reset", saveErr)
		}
		s.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
		res = succeed(MsgPasswordReset)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
