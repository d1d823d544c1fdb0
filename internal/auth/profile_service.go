// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"errors"
	"strings"
)

// GetProfile returns the public profile of a user.
func (s *Service) GetProfile(ctx context.Context, userID int64) (res ProfileResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.GetProfile")
	defer func() { s.finish(ctx, span, OpGetProfile, res.Result, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProfileResult{Result: fail(KindNotFound, MsgUserNotFound)}, nil
		}
		return ProfileResult{}, storageErr("get user by id", err)
	}
	return ProfileResult{Result: succeed(""), Profile: user.Profile()}, nil
}

// UpdateProfile merges the non-blank fields of upd into the user's profile.
// A new email must not belong to another user.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.UpdateProfile")
	defer func() { s.finish(ctx, span, OpUpdateProfile, res, err) }()

	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.Email = strings.TrimSpace(upd.Email)
	if msg := validationMessage(upd); msg != "" {
		return fail(KindValidation, msg), nil
	}

	err = s.serialized(ctx, userKey(userID), func(ctx context.Context) error {
		var applyErr error
		res, applyErr = s.applyProfileUpdate(ctx, userID, upd)
		return applyErr
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) applyProfileUpdate(ctx context.Context, userID int64, upd ProfileUpdate) (Result, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(KindNotFound, MsgUserNotFound), nil
		}
		return Result{}, storageErr("get user by id", err)
	}

	changed := false
	if upd.FirstName != "" && upd.FirstName != user.FirstName {
		user.FirstName = upd.FirstName
		changed = true
	}
	if upd.LastName != "" && upd.LastName != user.LastName {
		user.LastName = upd.LastName
		changed = true
	}
	if upd.Email != "" && upd.Email != user.Email {
		taken, takenErr := s.users.EmailTaken(ctx, upd.Email, user.ID)
		if takenErr != nil {
			return Result{}, storageErr("check email", takenErr)
		}
		if taken {
			return fail(KindDuplicateCredential, MsgEmailInUse), nil
		}
		user.Email = upd.Email
		changed = true
	}

	if !changed {
		return succeed(MsgProfileUpdated), nil
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fail(KindDuplicateCredential, MsgEmailInUse), nil
		}
		return Result{}, storageErr("save profile", err)
	}
	return succeed(MsgProfileUpdated), nil
}

// UpdateProfilePicture stores an already validated picture path verbatim.
func (s *Service) UpdateProfilePicture(ctx context.Context, userID int64, path string) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.UpdateProfilePicture")
	defer func() { s.finish(ctx, span, OpUpdateProfilePicture, res, err) }()

	err = s.serialized(ctx, userKey(userID), func(ctx context.Context) error {
		user, getErr := s.users.GetByID(ctx, userID)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				res = fail(KindNotFound, MsgUserNotFound)
				return nil
			}
			return storageErr("get user by id", getErr)
		}
		if user.ProfilePicturePath == path {
			res = succeed(MsgPictureUpdated)
			return nil
		}
		user.ProfilePicturePath = path
		if saveErr := s.users.Save(ctx, user); saveErr != nil {
			return storageErr("save profile picture", saveErr)
		}
		res = succeed(MsgPictureUpdated)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
