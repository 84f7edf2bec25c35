// Command viral runs the outlier detector directly: a one-shot locked scan
// or a cleanup of expired outliers.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/application/repository"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/outlier"
)

func main() {
	root := &cobra.Command{
		Use:           "viral",
		Short:         "Viral outlier detector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScanCmd(), newCleanupCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*outlier.Detector, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(db)
	return outlier.NewDetector(store, store, cfg.Viral), nil
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a locked outlier scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			detector, err := bootstrap()
			if err != nil {
				return err
			}
			result, err := detector.Scan(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired outliers",
		RunE: func(cmd *cobra.Command, args []string) error {
			detector, err := bootstrap()
			if err != nil {
				return err
			}
			deleted, err := detector.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Cleaned up %d expired outliers\n", deleted)
			return nil
		},
	}
}
