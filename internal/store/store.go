// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

// Package store opens the PostgreSQL pool and manages the schema.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect retry policy. The database may still be starting when the CLI runs.
const (
	connectAttempts = 5
	connectBackoff  = 200 * time.Millisecond
	connectCap      = 2 * time.Second
)

// pinger is the part of *pgxpool.Pool Open waits on.
type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a pool for databaseURL and waits until it answers a ping.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	if err := waitReady(ctx, pool, connectBackoffPolicy()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func connectBackoffPolicy() retry.Backoff {
	b := retry.NewExponential(connectBackoff)
	b = retry.WithCappedDuration(connectCap, b)
	return retry.WithMaxRetries(connectAttempts-1, b)
}

func waitReady(ctx context.Context, db pinger, backoff retry.Backoff) error {
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := db.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempts).Wrap(err)
	}
	return nil
}
