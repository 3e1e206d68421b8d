package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/lazypower/visarea/internal/config"
	"github.com/lazypower/visarea/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "visarea",
	Short: "Incremental effective-area scoring for location tracks",
	Long: "visarea scores every location of a node's track by the area of the triangle it forms " +
		"with its neighbors, as locations arrive. Small areas mark points a simplifier can drop.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(tailCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens the configured database, falling back to the default path.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
