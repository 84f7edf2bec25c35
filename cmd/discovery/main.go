// Command discovery runs the recursive hashtag discovery engine for one
// tenant and platform.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/application/repository"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/discovery"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/proxy"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/scrapers"
)

func main() {
	var (
		userID        int64
		groupID       int64
		platform      string
		proxyURL      string
		seeds         []string
		maxIterations int
		maxHashtags   int
		maxPosts      int
	)

	root := &cobra.Command{
		Use:           "discovery",
		Short:         "Recursive hashtag discovery",
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
			store := repository.NewStore(db)
			pool := proxy.NewPool(cfg.Discovery.ProxiesFile)

			ctx := cmd.Context()
			engine := discovery.NewEngine(ctx, store, pool, scrapers.Factory, cfg.Discovery, discovery.Options{
				UserID:             userID,
				GroupID:            optionalID(groupID),
				Platform:           platform,
				Proxy:              proxyURL,
				Seeds:              seeds,
				MaxPostsPerHashtag: maxPosts,
			})

			result, err := engine.DiscoverAndScrapeRecursive(ctx, maxIterations, maxHashtags)
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

	root.Flags().Int64Var(&userID, "user-id", 0, "User ID (optional, widens to all competitors when unset)")
	root.Flags().Int64Var(&groupID, "group-id", 0, "Group ID (optional)")
	root.Flags().StringVar(&platform, "platform", "instagram", "Platform (instagram, tiktok)")
	root.Flags().StringVar(&proxyURL, "proxy", "", `Proxy URL, "DIRECT" to disable proxies, empty for auto-selection`)
	root.Flags().StringSliceVar(&seeds, "seed", nil, "Seed hashtags forced to the top of the queue")
	root.Flags().IntVar(&maxIterations, "max-iterations", 3, "Max recursive iterations (hard-capped at 10)")
	root.Flags().IntVar(&maxHashtags, "max-hashtags", 10, "Max hashtags per iteration")
	root.Flags().IntVar(&maxPosts, "max-posts", 0, "Max posts per hashtag (0 uses the configured default)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
