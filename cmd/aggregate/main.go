// Command aggregate prints the assembled content context for one tenant,
// exactly as the AI content generator receives it. Useful for inspecting
// what the global-niche brain resolves for a given platform.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/aggregator"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/application/repository"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
)

func main() {
	var (
		userID   int64
		groupID  int64
		platform string
	)

	root := &cobra.Command{
		Use:           "aggregate",
		Short:         "Print the content-generation context for a tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Configure(cfg.LogLevel, cfg.LogFormat)

			db, err := repository.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}

			cc, err := aggregator.New(db).Aggregate(cmd.Context(), userID, groupID, platform)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	root.Flags().Int64Var(&userID, "user-id", 0, "User ID")
	root.Flags().Int64Var(&groupID, "group-id", 0, "Group ID")
	root.Flags().StringVar(&platform, "platform", "instagram", "Target platform")
	root.MarkFlagRequired("user-id")
	root.MarkFlagRequired("group-id")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
