// Command listener is the CLI for the Reddit ingestion pipeline: run the
// scheduler, manage sources, backfill history, reprocess strategy cards.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/application/repository"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/chunker"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/extractor"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/fetcher"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/quality"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/scheduler"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listener",
		Short:         "Reddit listener pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunOnceCmd(),
		newRunCmd(),
		newAddSubredditCmd(),
		newAddQueryCmd(),
		newBackfillCmd(),
		newCleanupCmd(),
		newReprocessCardsCmd(),
		newConfigCmd(),
	)
	return root
}

// bootstrap loads config and wires the scheduler stack.
func bootstrap() (*config.Config, *scheduler.Scheduler, *repository.Store, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store := repository.NewStore(db)
	sched := scheduler.New(
		store,
		fetcher.NewClient(cfg.Fetch.UserAgent),
		quality.NewScorer(cfg.Quality),
		chunker.New(cfg.Chunk),
		extractor.New(cfg.LLM),
		cfg,
	)
	return cfg, sched, store, nil
}

func newRunOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single ingest cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, _, err := bootstrap()
			if err != nil {
				return err
			}
			return sched.RunOnce(cmd.Context())
		},
	}
}

func newRunCmd() *cobra.Command {
	var intervalMin int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the listener loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, _, err := bootstrap()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger.Infof(ctx, "starting runner loop (interval: %d min)", intervalMin)
			for {
				if err := sched.RunOnce(ctx); err != nil {
					logger.Errorf(ctx, "run exception: %v", err)
				}
				logger.Infof(ctx, "sleeping for %d minutes", intervalMin)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(intervalMin) * time.Minute):
				}
			}
		},
	}
	cmd.Flags().IntVar(&intervalMin, "interval-min", 15, "Interval in minutes")
	return cmd
}

func newAddSubredditCmd() *cobra.Command {
	var userID, groupID int64
	cmd := &cobra.Command{
		Use:   "add-subreddit <name>",
		Short: "Add a subreddit source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, err := bootstrap()
			if err != nil {
				return err
			}
			src, err := store.CreateSource(cmd.Context(), &types.Source{
				UserID:  userID,
				GroupID: optionalID(groupID),
				Kind:    types.SourceKindSubreddit,
				Value:   args[0],
			})
			if err != nil {
				return fmt.Errorf("failed to add source: %w", err)
			}
			logger.Infof(cmd.Context(), "added source ID %d", src.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID")
	cmd.Flags().Int64Var(&groupID, "group-id", 0, "Group ID (optional)")
	cmd.MarkFlagRequired("user-id")
	return cmd
}

func newAddQueryCmd() *cobra.Command {
	var userID, groupID int64
	var subreddit string
	cmd := &cobra.Command{
		Use:   "add-query <query>",
		Short: "Add a keyword query source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, err := bootstrap()
			if err != nil {
				return err
			}
			src := &types.Source{
				UserID:  userID,
				GroupID: optionalID(groupID),
				Kind:    types.SourceKindKeyword,
				Value:   args[0],
			}
			if subreddit != "" {
				src.Subreddit = &subreddit
			}
			created, err := store.CreateSource(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("failed to add source: %w", err)
			}
			logger.Infof(cmd.Context(), "added source ID %d", created.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID")
	cmd.Flags().Int64Var(&groupID, "group-id", 0, "Group ID (optional)")
	cmd.Flags().StringVar(&subreddit, "subreddit", "", "Limit to subreddit (optional)")
	cmd.MarkFlagRequired("user-id")
	return cmd
}

func newBackfillCmd() *cobra.Command {
	var sourceID int64
	var hours int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill historical posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, _, err := bootstrap()
			if err != nil {
				return err
			}
			_, err = sched.Backfill(cmd.Context(), sourceID, hours)
			return err
		},
	}
	cmd.Flags().Int64Var(&sourceID, "source-id", 0, "Source ID to backfill")
	cmd.Flags().IntVar(&hours, "hours", 72, "Hours to go back")
	cmd.MarkFlagRequired("source-id")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var sourceID, userID int64
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete a source and its data",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, err := bootstrap()
			if err != nil {
				return err
			}
			deleted, err := store.DeleteSource(cmd.Context(), sourceID, userID)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("failed to delete source %d (not found or user mismatch)", sourceID)
			}
			logger.Infof(cmd.Context(), "deleted source %d", sourceID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&sourceID, "source-id", 0, "Source ID to delete")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID for verification")
	cmd.MarkFlagRequired("source-id")
	return cmd
}

func newReprocessCardsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reprocess-cards",
		Short: "Extract strategy cards from existing items",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, _, err := bootstrap()
			if err != nil {
				return err
			}
			_, err = sched.ReprocessCards(cmd.Context(), limit)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max items to process")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg.Summary(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
