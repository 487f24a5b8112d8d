package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/alert"
	"github.com/smallbiznis/rentflow/internal/calendar"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/events"
	"github.com/smallbiznis/rentflow/internal/lifecycle"
	"github.com/smallbiznis/rentflow/internal/notification"
	"github.com/smallbiznis/rentflow/internal/observability"
	"github.com/smallbiznis/rentflow/internal/reminder"
	"github.com/smallbiznis/rentflow/internal/tenant"
	"github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

// runWithApp starts a headless container, fills targets, runs fn and stops
// the container again. Providers nothing asks for are never constructed.
func runWithApp(ctx context.Context, fn func() error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		clock.Module,
		events.Module,
		tenant.Module,
		lifecycle.Module,
		notification.Module,
		alert.Module,
		calendar.Module,
		reminder.Module,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
