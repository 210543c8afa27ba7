// Package commands implements the wpmigrate subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinedata/wpmigrate/internal/config"
	"github.com/cinedata/wpmigrate/internal/retry"
	"github.com/cinedata/wpmigrate/internal/source"
	"github.com/cinedata/wpmigrate/internal/target"
)

// Runtime carries the loaded configuration and logger from the root
// command into subcommands.
type Runtime struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

type runtimeKey struct{}

// WithRuntime stores the runtime in ctx.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom retrieves the runtime stored by the root command.
func RuntimeFrom(ctx context.Context) (*Runtime, error) {
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("command runtime not initialized")
	}
	return rt, nil
}

// retryPolicy builds the shared retry policy every store call goes
// through.
func (rt *Runtime) retryPolicy() *retry.Policy {
	return retry.NewPolicy(
		rt.Cfg.Retry.MaxAttempts,
		time.Duration(rt.Cfg.Retry.TimeoutSeconds)*time.Second,
		rt.Logger,
	)
}

// openSource connects to the legacy store.
func (rt *Runtime) openSource(ctx context.Context) (*source.MySQLReader, error) {
	return source.OpenMySQL(ctx, source.Config{
		Host:     rt.Cfg.Legacy.Host,
		Port:     rt.Cfg.Legacy.Port,
		User:     rt.Cfg.Legacy.User,
		Password: rt.Cfg.Legacy.Password,
		Database: rt.Cfg.Legacy.Database,
	}, rt.retryPolicy(), rt.Logger)
}

// openTarget connects to the target store.
func (rt *Runtime) openTarget(ctx context.Context) (*target.Postgres, error) {
	return target.OpenPostgres(ctx, target.Config{
		Host:     rt.Cfg.Target.Host,
		Port:     rt.Cfg.Target.Port,
		User:     rt.Cfg.Target.User,
		Password: rt.Cfg.Target.Password,
		Database: rt.Cfg.Target.Database,
		SSLMode:  rt.Cfg.Target.SSLMode,
	}, rt.retryPolicy(), rt.Logger)
}
