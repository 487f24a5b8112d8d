package main

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/alert"
	"github.com/smallbiznis/rentflow/internal/calendar"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/migration"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/internal/reminder"
	"github.com/smallbiznis/rentflow/pkg/datex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			return runWithApp(cmd.Context(), func() error {
				if err := migration.Apply(cmd.Context(), conn); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "database schema up to date")
				return nil
			}, &conn)
		},
	})
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema statements in apply order",
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, err := migration.Statements()
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
			}
			return nil
		},
	}
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Alert engine operations",
	}

	var orgRaw, atRaw string
	evaluate := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the alert pass now for one owner or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				engine *alert.Engine
				clk    clock.Clock
			)
			return runWithApp(cmd.Context(), func() error {
				at, err := resolveDate(atRaw, clk)
				if err != nil {
					return err
				}

				var report alert.Report
				if orgRaw == "" {
					report, err = engine.EvaluateAll(cmd.Context(), at)
				} else {
					orgID, perr := snowflake.ParseString(orgRaw)
					if perr != nil {
						return fmt.Errorf("invalid --org %q", orgRaw)
					}
					report, err = engine.Evaluate(cmd.Context(), orgID, at)
				}
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				return err
			}, &engine, &clk)
		},
	}
	evaluate.Flags().StringVar(&orgRaw, "org", "", "owner id (default: every owner)")
	evaluate.Flags().StringVar(&atRaw, "at", "", "evaluation date, YYYY-MM-DD (default: today)")

	cmd.AddCommand(evaluate)
	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Rent reminder operations",
	}

	var orgRaw string
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List the rents an owner is still waiting for this month",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := snowflake.ParseString(orgRaw)
			if err != nil {
				return fmt.Errorf("invalid --org %q", orgRaw)
			}

			var (
				svc *reminder.Service
				clk clock.Clock
			)
			return runWithApp(cmd.Context(), func() error {
				items, err := svc.Pending(cmd.Context(), orgID, clk.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			}, &svc, &clk)
		},
	}
	pending.Flags().StringVar(&orgRaw, "org", "", "owner id")
	_ = pending.MarkFlagRequired("org")

	cmd.AddCommand(pending)
	return cmd
}

func calendarCmd() *cobra.Command {
	var (
		orgRaw      string
		month, year int
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Dump one month of rent due dates, payments, lease ends and vacancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := snowflake.ParseString(orgRaw)
			if err != nil {
				return fmt.Errorf("invalid --org %q", orgRaw)
			}

			var (
				projector *calendar.Projector
				clk       clock.Clock
				log       *zap.Logger
			)
			return runWithApp(cmd.Context(), func() error {
				now := clk.Now()
				if month == 0 {
					month = int(now.Month())
				}
				if year == 0 {
					year = now.Year()
				}

				ctx := orgcontext.WithOrgID(cmd.Context(), orgID)
				projection, err := projector.Project(ctx, month, year)
				if err != nil {
					return err
				}
				log.Debug("calendar projected", zap.Int("month", month), zap.Int("year", year))

				out := cmd.OutOrStdout()
				for _, day := range projection.Days() {
					for _, ev := range day.Events {
						fmt.Fprintf(out, "%s  %-14s %s\n", datex.Format(day.Date), ev.Type, ev.Title)
					}
				}
				return nil
			}, &projector, &clk, &log)
		},
	}
	cmd.Flags().StringVar(&orgRaw, "org", "", "owner id")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default: current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default: current)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func resolveDate(raw string, clk clock.Clock) (time.Time, error) {
	if raw == "" {
		return clk.Now(), nil
	}
	d, err := datex.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", raw, err)
	}
	return d, nil
}
