// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

// Package redislock serializes per-user auth updates across processes
// with a Redis lease.
package redislock

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/studentdiary/diary/internal/auth"
)

// Defaults for Options.
const (
	DefaultPrefix       = "diary:lock:"
	DefaultTTL          = 5 * time.Second
	DefaultPollInterval = 25 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLua = redis.NewScript(releaseScript)

// Options configures a Locker.
type Options struct {
	// Prefix is prepended to every lock key.
	Prefix string
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// PollInterval is the wait between acquisition attempts.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Locker implements auth.UserLocker with SET NX PX leases.
type Locker struct {
	client redis.UniversalClient
	opts   Options
}

// New creates a Locker. Zero Options fields take their defaults.
func New(client redis.UniversalClient, opts Options) *Locker {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Locker{client: client, opts: opts}
}

// Lock blocks until key is held or ctx is done. The returned unlock
// releases the lease only if it has not expired and been taken over.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.opts.Prefix + key
	token := ulid.Make().String()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, oops.Code("LOCK_TIMEOUT").With("key", key).Wrap(ctx.Err())
		case <-timer.C:
		}

		ok, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, oops.Code("LOCK_TIMEOUT").With("key", key).Wrap(ctxErr)
			}
			return nil, oops.Code("LOCK_ACQUIRE_FAILED").With("key", key).Wrap(err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}
		timer.Reset(l.opts.PollInterval)
	}
}

func (l *Locker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.TTL)
	defer cancel()
	if err := releaseLua.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.opts.Logger.Warn("release user lock failed", "key", redisKey, "error", err)
	}
}

var _ auth.UserLocker = (*Locker)(nil)
