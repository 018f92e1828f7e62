// Command seed registers technician fixtures in the Postgres directory.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/seed"
	"github.com/spec-kit/repair-service/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile       string
		fixturesPath  string
		migrationsDir string
		migrate       bool
	)
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")
	flagSet.StringVarP(&fixturesPath, "file", "f", "fixtures/technicians.yaml", "YAML technician fixtures")
	flagSet.StringVar(&migrationsDir, "migrations", persistence.DefaultMigrationsDir, "directory holding SQL migrations")
	flagSet.BoolVar(&migrate, "migrate", true, "apply migrations before seeding")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required; the api loads fixtures itself in memory mode (--fixtures)")
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if migrate {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrationsDir, logger); err != nil {
			return err
		}
	}

	fixtures, err := seed.LoadFile(fixturesPath)
	if err != nil {
		return err
	}
	technicians := service.NewTechnicianService(repository.NewTechnicianRepository(pg.PoolHandle()), logger, nil)
	result, err := seed.Apply(ctx, technicians, domain.Actor{ID: "seed", Role: domain.RoleAdmin}, fixtures, logger)
	if err != nil {
		return err
	}
	logger.Info("seed finished",
		zap.String("file", fixturesPath),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return nil
}
