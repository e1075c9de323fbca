package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/quotekeeper/internal/cache"
	"github.com/solatis/quotekeeper/internal/core/api"
	"github.com/solatis/quotekeeper/internal/core/db"
	"github.com/solatis/quotekeeper/internal/types"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load price tables and lookup options into the database",
	Long: `Upsert course prices, accommodation room rates and lookup options from a
JSON file shaped like:

  {"course_prices": [...], "accommodation_rooms": [...],
   "lookup_options": {"campus": [{"id": "syd", "name": "Sydney"}]}}

Course prices without an id are inserted as new rows. Cached field options
are cleared afterwards, including a shared Redis cache when configured.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importFile, "file", "", "reference data JSON file")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := readFile(importFile, "file")
	if err != nil {
		return err
	}
	var ref types.ReferenceData
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("parse reference data: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	if err := requireMigrated(ctx, database); err != nil {
		return err
	}

	store, err := db.NewStore(database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	c, err := cache.New(ctx, cfg.Cache.Backend, cache.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   "quotekeeper:",
	})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	svc, err := api.NewQuoteService(api.Deps{
		Store:   store,
		Options: cache.NewOptionsCache(c, api.StoreOptionsLoader(store), cfg.Cache.OptionsTTL, logger),
		Config:  cfg.Quotes,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	sum, err := svc.ImportReferenceData(ctx, ref)
	if err != nil {
		return err
	}
	return printJSON(cmd, sum)
}
