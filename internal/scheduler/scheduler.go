// Package scheduler drives one ingestion pass per source: fetch, normalize,
// score, persist, chunk, extract, then spike-check. Sources run in parallel;
// everything within one source is serial.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/chunker"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/extractor"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/normalize"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/quality"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types/interfaces"
)

// Minimum items in the current window before a spike alert fires, to avoid
// noise on low-volume sources.
const minSpikeCount = 10

// maxSourceParallelism bounds how many sources one pass works concurrently.
const maxSourceParallelism = 4

const backfillFetchLimit = 1000

// CardExtractor produces a strategy card for a post, or nil.
type CardExtractor interface {
	Extract(ctx context.Context, title, body string, topComments []string, permalink string) *extractor.Card
}

// Scheduler runs ingestion passes over the enabled sources.
type Scheduler struct {
	store     interfaces.ListenerStore
	fetcher   interfaces.RedditFetcher
	scorer    *quality.Scorer
	chunks    *chunker.Chunker
	extractor CardExtractor

	fetchCfg    config.FetchConfig
	chunkMin    int
	spikeFactor float64
	minQuality  float64

	now func() time.Time
}

// New builds a scheduler.
func New(
	store interfaces.ListenerStore,
	f interfaces.RedditFetcher,
	scorer *quality.Scorer,
	ch *chunker.Chunker,
	ex CardExtractor,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		store:       store,
		fetcher:     f,
		scorer:      scorer,
		chunks:      ch,
		extractor:   ex,
		fetchCfg:    cfg.Fetch,
		chunkMin:    cfg.Chunk.MinChars,
		spikeFactor: cfg.SpikeFactor,
		minQuality:  cfg.Quality.MinQualityScore,
		now:         time.Now,
	}
}

// RunOnce processes every enabled source. A failing source is logged and
// never starves the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logger.Infof(ctx, "starting listener run")

	sources, err := s.store.ListEnabledSources(ctx, 0)
	if err != nil {
		return fmt.Errorf("list enabled sources: %w", err)
	}
	logger.Infof(ctx, "processing %d sources", len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSourceParallelism)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			srcCtx := logger.WithFields(gctx, map[string]interface{}{
				"source_id": src.ID,
				"source":    src.Value,
			})
			if _, err := s.ProcessSource(srcCtx, src); err != nil {
				logger.Errorf(srcCtx, "error processing source %d (%s): %v", src.ID, src.Value, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infof(ctx, "listener run completed")
	return nil
}

// ProcessSource runs one full pass for a source and returns the number of
// new items seen. Listener state advances only after every item of the pass
// persisted, so a cancelled pass never corrupts the watermark.
func (s *Scheduler) ProcessSource(ctx context.Context, src *types.Source) (int, error) {
	state, err := s.store.GetState(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("load listener state: %w", err)
	}
	var lastSeen *time.Time
	if state != nil {
		t := state.LastSeenCreatedUTC
		lastSeen = &t
	}

	maxCreated := lastSeen
	newItems := 0

	handle := func(post types.RedditPost) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		newItems++
		if maxCreated == nil || post.CreatedUTC.After(*maxCreated) {
			t := post.CreatedUTC
			maxCreated = &t
		}
		return s.processItem(ctx, src, post)
	}

	if src.Kind == types.SourceKindSubreddit {
		err = s.fetcher.FetchSubredditNew(ctx, src.Value, s.fetchCfg.DefaultLimit, lastSeen, handle)
	} else {
		sub := ""
		if src.Subreddit != nil {
			sub = *src.Subreddit
		}
		err = s.fetcher.FetchSearch(ctx, src.Value, sub, s.fetchCfg.DefaultLimit, lastSeen, handle)
	}
	if err != nil {
		return newItems, err
	}

	if maxCreated != nil {
		if err := s.store.AdvanceState(ctx, src.ID, *maxCreated); err != nil {
			return newItems, fmt.Errorf("advance listener state: %w", err)
		}
	}

	if err := s.checkForSpikes(ctx, src.ID); err != nil {
		logger.Warnf(ctx, "spike check failed for source %d: %v", src.ID, err)
	}
	return newItems, nil
}

// processItem runs the per-item pipeline: normalize, score, persist, chunk,
// fetch comments when warranted, extract a card.
func (s *Scheduler) processItem(ctx context.Context, src *types.Source, post types.RedditPost) error {
	normTitle := normalize.Text(post.Title, "")
	normBody := normalize.Text(post.Body, post.Author)

	sig := quality.Signals{
		Score:       post.Score,
		NumComments: post.NumComments,
		CreatedUTC:  post.CreatedUTC,
		NSFW:        post.NSFW,
		Removed:     normBody.IsRemoved || post.Removed,
	}
	if post.AuthorFlair != nil {
		sig.AuthorFlair = *post.AuthorFlair
	}
	score := s.scorer.Compute(sig)

	filterSig := sig
	filterSig.Removed = post.Removed
	if !s.scorer.PassesFilter(filterSig, score) {
		return nil
	}

	raw, err := types.MarshalToJSON(post.RawJSON)
	if err != nil {
		return fmt.Errorf("encode raw json: %w", err)
	}
	itemID, err := s.store.UpsertItem(ctx, &types.Item{
		SourceID:     src.ID,
		Subreddit:    post.Subreddit,
		ExternalID:   post.ExternalID,
		ExternalURL:  post.ExternalURL,
		Title:        post.Title,
		Body:         post.Body,
		Author:       post.Author,
		AuthorFlair:  post.AuthorFlair,
		Score:        post.Score,
		NumComments:  post.NumComments,
		CreatedUTC:   post.CreatedUTC,
		QualityScore: score,
		NSFW:         post.NSFW,
		Removed:      post.Removed,
		RawJSON:      raw,
	})
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", post.ExternalID, err)
	}

	header := chunker.BuildHeader(post.Subreddit, post.Score, post.CreatedUTC.Format(time.RFC3339), post.ExternalURL, normTitle.Text)
	fullText := normTitle.Text + "\n\n" + normBody.Text
	for _, ch := range s.chunks.Split(fullText, header) {
		if _, err := s.store.InsertChunk(ctx, &types.Chunk{ItemID: itemID, Text: ch.Text, Hash: ch.Hash}); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	var topComments []string
	if s.scorer.IsHighQuality(score) {
		topComments, err = s.ingestComments(ctx, itemID, post, normTitle.Text)
		if err != nil {
			logger.Warnf(ctx, "comment fetch failed for %s: %v", post.ExternalID, err)
		}
	}

	if card := s.extractor.Extract(ctx, normTitle.Text, normBody.Text, topComments, post.ExternalURL); card != nil {
		if err := s.persistCard(ctx, itemID, card); err != nil {
			return fmt.Errorf("persist strategy card: %w", err)
		}
	}
	return nil
}

// ingestComments pulls top comments for a high-quality item, persisting the
// live ones and chunking any long enough to stand alone.
func (s *Scheduler) ingestComments(ctx context.Context, itemID int64, post types.RedditPost, normTitle string) ([]string, error) {
	var bodies []string
	err := s.fetcher.FetchComments(ctx, post.ExternalID, s.fetchCfg.CommentsLimit, s.fetchCfg.CommentsDepth, func(cm types.RedditComment) error {
		norm := normalize.Text(cm.Body, cm.Author)
		if norm.IsRemoved || norm.IsDeleted {
			return nil
		}
		bodies = append(bodies, norm.Text)

		raw, err := types.MarshalToJSON(cm.RawJSON)
		if err != nil {
			return err
		}
		commentID, err := s.store.UpsertComment(ctx, &types.Comment{
			ItemID:           itemID,
			ExternalID:       cm.ExternalID,
			ParentExternalID: cm.ParentExternalID,
			Body:             cm.Body,
			Author:           cm.Author,
			AuthorFlair:      cm.AuthorFlair,
			Score:            cm.Score,
			CreatedUTC:       cm.CreatedUTC,
			Removed:          cm.Removed,
			RawJSON:          raw,
		})
		if err != nil {
			return err
		}

		if len(norm.Text) > s.chunkMin {
			header := chunker.BuildHeader(post.Subreddit, cm.Score, cm.CreatedUTC.Format(time.RFC3339), post.ExternalURL, "Comment on: "+normTitle)
			for _, ch := range s.chunks.Split(norm.Text, header) {
				cid := commentID
				if _, err := s.store.InsertChunk(ctx, &types.Chunk{ItemID: itemID, CommentID: &cid, Text: ch.Text, Hash: ch.Hash}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return bodies, err
}

func (s *Scheduler) persistCard(ctx context.Context, itemID int64, card *extractor.Card) error {
	targets, err := types.MarshalToJSON(card.PlatformTargets)
	if err != nil {
		return err
	}
	steps, err := types.MarshalToJSON(card.Steps)
	if err != nil {
		return err
	}
	preconditions, err := types.MarshalToJSON(card.Preconditions)
	if err != nil {
		return err
	}
	metrics, err := types.MarshalToJSON(card.Metrics)
	if err != nil {
		return err
	}
	risks, err := types.MarshalToJSON(card.Risks)
	if err != nil {
		return err
	}
	evidence, err := types.MarshalToJSON(card.Evidence)
	if err != nil {
		return err
	}

	niche := card.Niche
	if niche == "" {
		niche = "general"
	}
	_, err = s.store.InsertCard(ctx, &types.StrategyCard{
		ItemID:          itemID,
		PlatformTargets: targets,
		Niche:           niche,
		Tactic:          card.Tactic,
		Steps:           steps,
		Preconditions:   preconditions,
		Metrics:         metrics,
		Risks:           risks,
		Confidence:      card.Confidence,
		Evidence:        evidence,
	})
	return err
}

// checkForSpikes compares the last 24h of items against the 24h before and
// writes an alert when volume at least doubled on meaningful counts.
func (s *Scheduler) checkForSpikes(ctx context.Context, sourceID int64) error {
	now := s.now().UTC()
	currentStart := now.Add(-24 * time.Hour)
	prevStart := now.Add(-48 * time.Hour)

	current, err := s.store.CountItemsInWindow(ctx, sourceID, currentStart, now)
	if err != nil {
		return err
	}
	previous, err := s.store.CountItemsInWindow(ctx, sourceID, prevStart, currentStart)
	if err != nil {
		return err
	}

	var factor float64
	if previous == 0 {
		if current > 0 {
			factor = float64(current)
		}
	} else {
		factor = float64(current) / float64(previous)
	}

	if factor < s.spikeFactor || current < minSpikeCount {
		return nil
	}

	logger.Warnf(ctx, "spike detected for source %d: factor=%.2f, count=%d", sourceID, factor, current)
	topItems, err := s.store.TopItemsInWindow(ctx, sourceID, currentStart, now, 5)
	if err != nil {
		return err
	}
	topJSON, err := types.MarshalToJSON(topItems)
	if err != nil {
		return err
	}
	return s.store.InsertAlert(ctx, &types.Alert{
		SourceID:      sourceID,
		WindowStart:   currentStart,
		WindowEnd:     now,
		Metric:        "item_volume_24h",
		CurrentValue:  float64(current),
		PreviousValue: float64(previous),
		Factor:        factor,
		TopItemIDs:    topJSON,
	})
}

// Backfill fetches deeper history for one source, running the normal
// per-item pipeline but never touching listener state or alerts.
func (s *Scheduler) Backfill(ctx context.Context, sourceID int64, hours int) (int, error) {
	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if !src.Enabled {
		return 0, fmt.Errorf("source %d is disabled", sourceID)
	}

	cutoff := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	count := 0

	handle := func(post types.RedditPost) error {
		if post.CreatedUTC.Before(cutoff) {
			logger.Infof(ctx, "reached backfill cutoff %s", cutoff)
			return errStopBackfill
		}
		if err := s.processItem(ctx, src, post); err != nil {
			return err
		}
		count++
		return nil
	}

	if src.Kind == types.SourceKindSubreddit {
		err = s.fetcher.FetchSubredditNew(ctx, src.Value, backfillFetchLimit, nil, handle)
	} else {
		sub := ""
		if src.Subreddit != nil {
			sub = *src.Subreddit
		}
		err = s.fetcher.FetchSearch(ctx, src.Value, sub, backfillFetchLimit, nil, handle)
	}
	if err != nil && !errors.Is(err, errStopBackfill) {
		return count, err
	}
	logger.Infof(ctx, "backfilled %d items for source %d", count, sourceID)
	return count, nil
}

var errStopBackfill = errors.New("backfill cutoff reached")

// ReprocessCards extracts strategy cards for stored items that lack one,
// best quality first. Returns how many cards were extracted.
func (s *Scheduler) ReprocessCards(ctx context.Context, limit int) (int, error) {
	items, err := s.store.ItemsWithoutCards(ctx, s.minQuality, limit)
	if err != nil {
		return 0, err
	}
	logger.Infof(ctx, "found %d items without strategy cards", len(items))

	extracted := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}
		normTitle := normalize.Text(item.Title, "")
		normBody := normalize.Text(item.Body, "")

		card := s.extractor.Extract(ctx, normTitle.Text, normBody.Text, nil, item.ExternalURL)
		if card == nil {
			continue
		}
		if err := s.persistCard(ctx, item.ID, card); err != nil {
			logger.Errorf(ctx, "failed to save card for item %d: %v", item.ID, err)
			continue
		}
		extracted++
	}
	logger.Infof(ctx, "reprocessing complete: %d/%d cards extracted", extracted, len(items))
	return extracted, nil
}
