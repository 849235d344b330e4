package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/config"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/sysutil"
)

// rootCommander holds state shared by every subcommand. cfg is populated in
// PersistentPreRunE before any subcommand runs.
type rootCommander struct {
	envFile string
	cfg     config.Config
}

const rootLongDesc string = `Backend for anonymous counseling sessions: personality typing from
keyword selections, counselor matching, consultations, messages, cards
and music recommendations.

Configuration comes from the environment. A .env file is loaded first
when present; variables already set in the environment win.`

func newRootCmd() *cobra.Command {
	root := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "counsel",
		Short:         "Counseling backend",
		Long:          rootLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return root.load()
		},
	}
	cmd.PersistentFlags().StringVar(&root.envFile, "env-file", ".env", "Dotenv file to load before reading configuration")

	cmd.AddCommand(
		newServeCmd(root),
		newMigrateCmd(root),
		newSeedCmd(root),
		newSweepCmd(root),
	)
	return cmd
}

func (r *rootCommander) load() error {
	if err := godotenv.Load(r.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", r.envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	r.cfg = cfg

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Str("version", version).Logger()
	gin.SetMode(cfg.GinMode)
	return nil
}

// openDB opens the configured database and brings the schema up to date.
func (r *rootCommander) openDB() (*gorm.DB, error) {
	db, err := repo.Open(r.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.cfg.DB.Driver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
