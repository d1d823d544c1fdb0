// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/studentdiary/diary/pkg/errutil"
)

const tracerName = "github.com/studentdiary/diary/internal/auth"

// Optimistic-lock retry policy for read-modify-write units.
const (
	maxConflictRetries = 3
	conflictBackoff    = 10 * time.Millisecond
)

// lockoutTimeLayout formats the lockout end in user-facing messages.
const lockoutTimeLayout = "2006-01-02 15:04:05Z"

// fallbackDummyHash stands in for the dummy digest if the hasher cannot
// produce one. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const fallbackDummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// UserLocker serializes read-modify-write units for one user across processes.
type UserLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Service orchestrates registration, login, password reset and profile updates.
// It holds no per-user state; every operation re-reads the record.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	clock    clockwork.Clock
	logger   *slog.Logger
	notifier ResetNotifier
	locker   UserLocker
	metrics  *Metrics
	tracer   trace.Tracer

	// dummyHash is verified for unknown usernames so a miss costs the same
	// as a real verification under the configured hasher parameters.
	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for lockout and token expiry.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets the reset token delivery collaborator.
func WithNotifier(n ResetNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithUserLocker serializes per-user updates through l.
func WithUserLocker(l UserLocker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMetrics records operation outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. users and hasher are required.
func NewService(users UserRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		notifier: discardNotifier{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("clock is required")
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	if s.notifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("notifier is required")
	}
	return s, nil
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer func() { s.finish(ctx, span, OpRegister, res, err) }()

	if req.Password != req.ConfirmPassword {
		return fail(KindPasswordMismatch, MsgPasswordMismatch), nil
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if msg := validationMessage(req); msg != "" {
		return fail(KindValidation, msg), nil
	}

	taken, err := s.credentialTaken(ctx, req.Username, req.Email)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return fail(KindDuplicateCredential, MsgDuplicateCredential), nil
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Result{}, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(req.Username, req.Email, hash, s.clock.Now())
	if err != nil {
		return Result{}, oops.Code("AUTH_REGISTER_FAILED").With("operation", "new user").Wrap(err)
	}
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fail(KindDuplicateCredential, MsgDuplicateCredential), nil
		}
		return Result{}, storageErr("create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return succeed(MsgRegistered), nil
}

func (s *Service) credentialTaken(ctx context.Context, username, email string) (bool, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, storageErr("get user by username", err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, storageErr("get user by email", err)
	}
	return false, nil
}

// Login authenticates a user against the lockout policy.
//
// A locked account is rejected before the password is checked. A wrong
// password advances the lockout state machine; the failure that imposes
// a lockout is reported as KindAccountLocked. Unknown usernames and wrong
// passwords produce the same result.
func (s *Service) Login(ctx context.Context, username, password string) (res LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() { s.finish(ctx, span, OpLogin, res.Result, err) }()

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return LoginResult{}, storageErr("get user by username", err)
		}
		// Keep timing close to a real verification.
		_, _ = s.hasher.Verify(password, s.dummyDigest(ctx)) //nolint:errcheck // result is irrelevant
		return LoginResult{Result: fail(KindInvalidCredentials, MsgInvalidCredentials)}, nil
	}

	userID := user.ID
	err = s.serialized(ctx, userKey(userID), func(ctx context.Context) error {
		if user == nil {
			fresh, getErr := s.users.GetByID(ctx, userID)
			if getErr != nil {
				if errors.Is(getErr, ErrNotFound) {
					res = LoginResult{Result: fail(KindInvalidCredentials, MsgInvalidCredentials)}
					return nil
				}
				return storageErr("get user by id", getErr)
			}
			user = fresh
		}
		var attemptErr error
		res, attemptErr = s.attemptLogin(ctx, user, password)
		if errors.Is(attemptErr, ErrConflict) {
			user = nil
		}
		return attemptErr
	})
	if err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// attemptLogin runs one lockout check plus verification and persists the transition.
func (s *Service) attemptLogin(ctx context.Context, user *User, password string) (LoginResult, error) {
	now := s.clock.Now().UTC()

	if user.IsLocked(now) {
		s.logger.InfoContext(ctx, "login rejected: account locked", "user_id", user.ID, "lockout_end", *user.LockoutEnd)
		return lockedResult(*user.LockoutEnd), nil
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err)
	}

	if !valid {
		locked := user.RecordFailure(now)
		if err := s.users.Save(ctx, user); err != nil {
			return LoginResult{}, storageErr("save failed login", err)
		}
		if locked {
			s.metrics.lockout()
			s.logger.WarnContext(ctx, "account locked", "user_id", user.ID, "lockout_end", *user.LockoutEnd)
			return lockedResult(*user.LockoutEnd), nil
		}
		s.logger.InfoContext(ctx, "login failed", "user_id", user.ID, "failed_attempts", user.FailedLoginAttempts)
		return LoginResult{Result: fail(KindInvalidCredentials, MsgInvalidCredentials)}, nil
	}

	user.RecordSuccess(now)
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		upgraded, hashErr := s.hasher.Hash(password)
		if hashErr != nil {
			errutil.LogError(ctx, s.logger, "password hash upgrade failed", hashErr)
		} else {
			user.PasswordHash = upgraded
		}
	}
	if err := s.users.Save(ctx, user); err != nil {
		return LoginResult{}, storageErr("save successful login", err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return LoginResult{
		Result:   succeed(MsgLoginSuccessful),
		Profile:  user.Profile(),
		Identity: user.Identity(),
	}, nil
}

func lockedResult(end time.Time) LoginResult {
	end = end.UTC()
	return LoginResult{
		Result:      fail(KindAccountLocked, fmt.Sprintf("Account locked until %s.", end.Format(lockoutTimeLayout))),
		LockedUntil: &end,
	}
}

// serialized runs fn as one unit per user: under the UserLocker when one is
// configured, and re-run while fn reports ErrConflict.
func (s *Service) serialized(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			return oops.Code(CodeLockFailed).With("key", key).Wrap(err)
		}
		defer unlock()
	}

	backoff := retry.WithMaxRetries(maxConflictRetries, retry.NewConstant(conflictBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck // fn errors are already coded
		err := fn(ctx)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// dummyDigest hashes a random secret with s.hasher on first use.
func (s *Service) dummyDigest(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		s.dummyHash = fallbackDummyHash
		digest, err := s.hasher.Hash(ulid.Make().String())
		if err != nil {
			errutil.LogError(ctx, s.logger, "dummy digest failed", err)
			return
		}
		s.dummyHash = digest
	})
	return s.dummyHash
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, res Result, err error) {
	defer span.End()
	s.metrics.observe(op, res, err)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		errutil.LogError(ctx, s.logger, op+" failed", err)
	case !res.OK:
		span.SetAttributes(attribute.String("auth.failure_kind", string(res.Kind)))
	}
}

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func storageErr(operation string, err error) error {
	return oops.Code(CodeStorageFailure).With("operation", operation).Wrap(fmt.Errorf("%w: %w", ErrStorage, err))
}
