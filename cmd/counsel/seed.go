package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/repo"
)

type seedCommander struct {
	root *rootCommander
	path string
}

func newSeedCmd(root *rootCommander) *cobra.Command {
	cmder := &seedCommander{root: root}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data (categories, keywords, types, counselors)",
		Long: `Upserts the YAML seed file into the database in a single transaction.
Running it again is safe; rows are matched by id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := root.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			return cmder.run(cmd.Context(), db)
		},
	}
	cmd.Flags().StringVarP(&cmder.path, "file", "f", "", "Seed file (default: SEED_PATH)")
	return cmd
}

func (c *seedCommander) run(ctx context.Context, db *gorm.DB) error {
	path := c.path
	if path == "" {
		path = c.root.cfg.SeedPath
	}
	return applySeedFile(ctx, db, path)
}

func applySeedFile(ctx context.Context, db *gorm.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	sum, err := repo.LoadSeed(ctx, db, f)
	if err != nil {
		return err
	}
	log.Info().
		Str("file", path).
		Int("categories", sum.Categories).
		Int("keywords", sum.Keywords).
		Int("types", sum.Types).
		Int("scores", sum.Scores).
		Int("final_types", sum.FinalTypes).
		Int("combinations", sum.Combinations).
		Int("counselors", sum.Counselors).
		Msg("seed applied")
	return nil
}
