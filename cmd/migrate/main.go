package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/urfave/cli/v2"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/events/db"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	l := logger.NewLoggerWithWriter(os.Stdout)

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the events database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					return withRunner(c.Context, cfg, l, (*migrations.Runner).RunMigrations)
				},
			},
			{
				Name:  "down",
				Usage: "roll back every migration",
				Action: func(c *cli.Context) error {
					return withRunner(c.Context, cfg, l, (*migrations.Runner).MigrateDown)
				},
			},
			{
				Name:      "to",
				Usage:     "migrate up or down to a version",
				ArgsUsage: "<version>",
				Action: func(c *cli.Context) error {
					version, err := strconv.ParseUint(c.Args().First(), 10, 32)
					if err != nil {
						return cli.Exit("version must be a number", 2)
					}
					return withRunner(c.Context, cfg, l, func(r *migrations.Runner) error {
						return r.MigrateTo(uint(version))
					})
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					return withRunner(c.Context, cfg, l, func(r *migrations.Runner) error {
						version, dirty, err := r.Version()
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", version, dirty)
						return nil
					})
				},
			},
			{
				Name:  "seed",
				Usage: "insert sample events",
				Action: func(c *cli.Context) error {
					return seed(c.Context, cfg, l)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		l.Error("MIGRATE", err.Error())
		os.Exit(1)
	}
}

func openPostgres(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func withRunner(ctx context.Context, cfg *config.Config, l *logger.Logger, fn func(*migrations.Runner) error) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return cli.Exit("SQL migrations only apply to postgres; sqlite creates its schema on open", 2)
	}
	bunDB, err := openPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}

	runner := migrations.NewRunner(bunDB, l)
	defer runner.Close()
	return fn(runner)
}

func seed(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	var (
		bunDB *bun.DB
		err   error
	)
	if cfg.Database.Driver == config.DriverSQLite {
		bunDB, err = db.OpenSQLite(ctx, cfg.Database.DSN)
	} else {
		bunDB, err = openPostgres(ctx, cfg.Database.DSN)
	}
	if err != nil {
		return err
	}
	defer bunDB.Close()

	return seedEvents(ctx, db.New(bunDB, utils.SystemClock{}), l)
}

func seedEvents(ctx context.Context, store *db.DB, l *logger.Logger) error {
	for _, fields := range sampleEvents(time.Now().UTC()) {
		ev, err := store.Create(ctx, fields)
		if err != nil {
			return fmt.Errorf("seed %q: %w", fields.Name.Value, err)
		}
		l.LogEvent("SEED", ev.ID, ev.Name)
	}
	return nil
}

func sampleEvents(now time.Time) []models.EventFields {
	day := func(n int) time.Time {
		return now.Truncate(24*time.Hour).AddDate(0, 0, n).Add(18 * time.Hour)
	}
	return []models.EventFields{
		{
			Name:        models.Some("Summer Fest"),
			Description: models.Some("Annual outdoor music festival."),
			Location:    models.Some("Riverside Park"),
			IsOnline:    models.Some(false),
			Venue:       models.Some("Main Stage"),
			Capacity:    models.Some(5000),
			IsPaid:      models.Some(true),
			Price:       models.Some(decimal.RequireFromString("45.00")),
			Date:        models.Some(day(30)),
		},
		{
			Name:        models.Some("Go Study Group"),
			Description: models.Some("Weekly reading of the Go memory model."),
			Location:    models.Some(""),
			IsOnline:    models.Some(true),
			MeetingURL:  models.Some("https://meet.example.com/go-study"),
			IsPaid:      models.Some(false),
			Date:        models.Some(day(7)),
		},
		{
			Name:        models.Some("Spring Hackathon"),
			Description: models.Some("Forty-eight hours of building."),
			Location:    models.Some("Innovation Hub"),
			IsOnline:    models.Some(false),
			Capacity:    models.Some(120),
			IsPaid:      models.Some(false),
			Date:        models.Some(day(-60)),
		},
	}
}
