package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/alert"
	"github.com/smallbiznis/rentflow/internal/audit"
	"github.com/smallbiznis/rentflow/internal/calendar"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/dashboard"
	"github.com/smallbiznis/rentflow/internal/events"
	"github.com/smallbiznis/rentflow/internal/lifecycle"
	"github.com/smallbiznis/rentflow/internal/lock"
	"github.com/smallbiznis/rentflow/internal/migration"
	"github.com/smallbiznis/rentflow/internal/notification"
	"github.com/smallbiznis/rentflow/internal/observability"
	"github.com/smallbiznis/rentflow/internal/property"
	"github.com/smallbiznis/rentflow/internal/ratelimit"
	"github.com/smallbiznis/rentflow/internal/receipt"
	"github.com/smallbiznis/rentflow/internal/reminder"
	"github.com/smallbiznis/rentflow/internal/scheduler"
	"github.com/smallbiznis/rentflow/internal/server"
	"github.com/smallbiznis/rentflow/internal/tenant"
	"github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		events.Module,

		// Domains
		audit.Module,
		property.Module,
		tenant.Module,
		lifecycle.Module,
		notification.Module,
		alert.Module,
		calendar.Module,
		dashboard.Module,
		reminder.Module,
		receipt.Module,

		ratelimit.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
