// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/studentdiary/diary/internal/auth"
	"github.com/studentdiary/diary/internal/auth/postgres"
	"github.com/studentdiary/diary/internal/auth/redislock"
	"github.com/studentdiary/diary/internal/config"
	"github.com/studentdiary/diary/internal/logging"
	"github.com/studentdiary/diary/internal/store"
	"github.com/studentdiary/diary/internal/xdg"
	"github.com/studentdiary/diary/pkg/errutil"
)

// AuthService is the part of auth.Service the account commands drive.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Result, error)
	Login(ctx context.Context, username, password string) (auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (auth.Result, error)
	ResetPassword(ctx context.Context, token, newPassword string) (auth.Result, error)
	GetProfile(ctx context.Context, userID int64) (auth.ProfileResult, error)
	UpdateProfile(ctx context.Context, userID int64, upd auth.ProfileUpdate) (auth.Result, error)
	UpdateProfilePicture(ctx context.Context, userID int64, path string) (auth.Result, error)
}

// Migrator wraps the methods the migrate command uses from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader builds the configuration from a file and flags.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// ServiceFactory wires an AuthService for cfg. Reset tokens are
	// delivered to notify. The returned func releases its resources.
	// Default: openService
	ServiceFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger, notify io.Writer) (AuthService, func(), error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d Deps) withDefaults() Deps {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.ServiceFactory == nil {
		d.ServiceFactory = openService
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return d
}

// cliApp carries state shared by all subcommands.
type cliApp struct {
	deps       Deps
	configFile string
}

// setup loads the configuration and builds the process logger. Without
// --config the file under the XDG config directory is used when present.
func (a *cliApp) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := a.configFile
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := a.deps.ConfigLoader(path, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url or DATABASE_URL)")
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup("diary", version, cfg.Log.Format, level, cmd.ErrOrStderr())
	return cfg, logger, nil
}

// withService runs fn against a freshly wired AuthService.
func (a *cliApp) withService(cmd *cobra.Command, fn func(ctx context.Context, svc AuthService) error) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, closeFn, err := a.deps.ServiceFactory(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := fn(ctx, svc); err != nil {
		if errors.Is(err, auth.ErrStorage) {
			errutil.LogError(ctx, logger, "account store failure", err)
			return oops.Code("SERVICE_UNAVAILABLE").Errorf("the account store is unavailable, try again later")
		}
		return err
	}
	return nil
}

// openService connects to PostgreSQL and, when configured, Redis.
func openService(ctx context.Context, cfg *config.Config, logger *slog.Logger, notify io.Writer) (AuthService, func(), error) {
	hasher, err := auth.NewArgon2idHasher(cfg.Argon2Params())
	if err != nil {
		return nil, nil, err
	}

	pool, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithNotifier(auth.NewWriterNotifier(notify)),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			closeAll()
			return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis client", "error", err)
			}
		})
		opts = append(opts, auth.WithUserLocker(redislock.New(client, redislock.Options{Logger: logger})))
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, auth.WithMetrics(auth.NewMetrics(reg)))
		closers = append(closers, func() { reportMetrics(logger, reg) })
	}

	svc, err := auth.NewService(postgres.NewUserRepository(pool), hasher, opts...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}

// reportMetrics logs every non-zero counter gathered from reg.
func reportMetrics(logger *slog.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			attrs := []any{"metric", mf.GetName(), "value", value}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			logger.Info("metric", attrs...)
		}
	}
}
