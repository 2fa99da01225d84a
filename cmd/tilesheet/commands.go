package main

import (
	"database/sql"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tilesheet/internal/config"
	"tilesheet/internal/database"
	"tilesheet/internal/database/migration"
	"tilesheet/internal/logging"
	"tilesheet/internal/repository"
	"tilesheet/internal/repository/postgres"
	"tilesheet/internal/service"
	"tilesheet/internal/storage"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	workDir  string
	sizes    []int
	logLevel string
}

func newRootCmd(cfg *config.AppConfig) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "tilesheet",
		Short:         "Pack square tile images into tilesheets",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.workDir, "work-dir", cfg.Tilesheet.WorkDir, "directory holding tile folders and tilesheet outputs")
	flags.IntSliceVar(&a.sizes, "sizes", cfg.Tilesheet.Sizes, "tile sizes in pixels, one sheet image per size")
	flags.StringVar(&a.logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(a.updateCmd(), a.removeCmd(), a.deleteCmd(), a.indexCmd())
	return root
}

func (a *app) updateCmd() *cobra.Command {
	var syncDB bool
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Insert every PNG under <work-dir>/NAME into the tilesheet NAME",
		Long: `Walks <work-dir>/NAME for *.png files and inserts each one, named by its file
name without extension. Existing tiles keep their slot and are overwritten.
The sheet images and the index are written to <work-dir>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var repo repository.TileRepository
			if syncDB {
				db, err := a.openDB(cmd)
				if err != nil {
					return err
				}
				defer db.Close()
				repo = postgres.NewTilePostgres(db)
			}

			svc, err := a.service(repo)
			if err != nil {
				return err
			}
			res, err := svc.Update(cmd.Context(), name, afero.NewOsFs(), filepath.Join(a.workDir, name))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tiles written, %d new\n", res.Sheet, res.Tiles, res.Added)
			return nil
		},
	}
	cmd.Flags().BoolVar(&syncDB, "sync-db", false, "mirror the resulting index into PostgreSQL")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME TILE",
		Short: "Free the slot of TILE in the tilesheet NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(nil)
			if err != nil {
				return err
			}
			return svc.RemoveTile(cmd.Context(), args[0], args[1])
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete the index and every sheet image of the tilesheet NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(nil)
			if err != nil {
				return err
			}
			return svc.DeleteTilesheet(cmd.Context(), args[0])
		},
	}
}

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index NAME",
		Short: "Print the index of the tilesheet NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(nil)
			if err != nil {
				return err
			}
			rc, err := svc.Index(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		},
	}
}

func (a *app) service(repo repository.TileRepository) (service.TilesheetService, error) {
	if len(a.sizes) == 0 {
		return nil, fmt.Errorf("at least one tile size is required")
	}
	store, err := storage.NewLocal(a.workDir)
	if err != nil {
		return nil, err
	}
	return service.NewTilesheetService(store, repo, service.Options{
		Sizes:  a.sizes,
		Logger: a.logger,
	}), nil
}

func (a *app) openDB(cmd *cobra.Command) (*sql.DB, error) {
	db, err := database.NewPostgres(cmd.Context(), a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migration.EnsureMigrated(cmd.Context(), db, a.logger, a.cfg.Database.Host); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
