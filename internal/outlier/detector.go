// Package outlier finds posts whose engagement significantly exceeds their
// account's rolling median. Detection is per-metric with floors, so a
// botted like-count alone never qualifies a post, and accounts with thin
// history are excluded entirely.
package outlier

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types/interfaces"
)

// LockName is the advisory lock guarding concurrent scans.
const LockName = "viral_scanner"

const lockTTL = time.Hour

// hookChars bounds the stored hook text.
const hookChars = 280

// Detector runs viral outlier scans.
type Detector struct {
	repo  interfaces.ViralOutlierRepository
	locks interfaces.TaskLockRepository
	cfg   config.ViralConfig
	now   func() time.Time
}

// NewDetector builds a detector.
func NewDetector(repo interfaces.ViralOutlierRepository, locks interfaces.TaskLockRepository, cfg config.ViralConfig) *Detector {
	return &Detector{repo: repo, locks: locks, cfg: cfg, now: time.Now}
}

type accountKey struct {
	username string
	platform string
}

// DetectOutliers computes baselines over the median window and evaluates
// every post in the viral window against its account's medians.
func (d *Detector) DetectOutliers(ctx context.Context) ([]types.OutlierCandidate, error) {
	now := d.now().UTC()
	medianCutoff := now.AddDate(0, 0, -d.cfg.MedianWindowDays)
	viralCutoff := now.AddDate(0, 0, -d.cfg.WindowDays)

	posts, err := d.repo.FetchPostsSince(ctx, medianCutoff)
	if err != nil {
		return nil, fmt.Errorf("fetch unified posts: %w", err)
	}

	baselines := d.computeBaselines(posts)

	var outliers []types.OutlierCandidate
	for _, post := range posts {
		if post.PostedAt.Before(viralCutoff) {
			continue
		}
		baseline, ok := baselines[accountKey{post.Username, post.Platform}]
		if !ok {
			continue
		}
		candidate := d.evaluate(post, baseline)
		if d.accept(candidate) {
			outliers = append(outliers, candidate)
		}
	}

	sort.SliceStable(outliers, func(i, j int) bool {
		if outliers[i].Multiplier != outliers[j].Multiplier {
			return outliers[i].Multiplier > outliers[j].Multiplier
		}
		return outliers[i].EngagementTotal > outliers[j].EngagementTotal
	})

	logger.Infof(ctx, "detected %d viral outliers", len(outliers))
	return outliers, nil
}

// computeBaselines derives per-account medians over the fetched posts.
// Accounts with too few posts or non-positive median engagement drop out.
func (d *Detector) computeBaselines(posts []types.UnifiedPost) map[accountKey]types.AccountBaseline {
	grouped := make(map[accountKey][]types.UnifiedPost)
	for _, p := range posts {
		key := accountKey{p.Username, p.Platform}
		grouped[key] = append(grouped[key], p)
	}

	baselines := make(map[accountKey]types.AccountBaseline, len(grouped))
	for key, accountPosts := range grouped {
		if len(accountPosts) < d.cfg.MinPosts {
			continue
		}

		likes := make([]float64, 0, len(accountPosts))
		comments := make([]float64, 0, len(accountPosts))
		engagement := make([]float64, 0, len(accountPosts))
		var views []float64
		for _, p := range accountPosts {
			likes = append(likes, float64(p.Likes))
			comments = append(comments, float64(p.Comments))
			engagement = append(engagement, float64(p.Likes+p.Comments))
			if p.Views != nil {
				views = append(views, float64(*p.Views))
			}
		}

		medianEngagement := median(engagement)
		if medianEngagement <= 0 {
			continue
		}

		baseline := types.AccountBaseline{
			Username:         key.username,
			Platform:         key.platform,
			MedianLikes:      median(likes),
			MedianComments:   median(comments),
			MedianEngagement: medianEngagement,
			PostCount:        len(accountPosts),
		}
		if len(views) > 0 {
			mv := median(views)
			baseline.MedianViews = &mv
		}
		baselines[key] = baseline
	}
	return baselines
}

// evaluate runs the per-metric outlier tests and derives the multiplier
// tier, availability and support for one post.
func (d *Detector) evaluate(post types.UnifiedPost, baseline types.AccountBaseline) types.OutlierCandidate {
	engagement := post.Likes + post.Comments

	likesOutlier := float64(post.Likes) >= 5*maxf(baseline.MedianLikes, 1) && post.Likes >= int64(d.cfg.LikesFloor)
	commentsOutlier := float64(post.Comments) >= 3*maxf(baseline.MedianComments, 1) && post.Comments >= int64(d.cfg.CommentsFloor)

	viewsOutlier := false
	if post.Views != nil {
		medianViews := 0.0
		if baseline.MedianViews != nil {
			medianViews = *baseline.MedianViews
		}
		viewsOutlier = float64(*post.Views) >= 5*maxf(medianViews, 1) && *post.Views >= int64(d.cfg.ViewsFloor)
	}

	available := 2 // likes and comments are always reported
	if post.Views != nil {
		available++
	}
	support := 0
	for _, hit := range []bool{likesOutlier, commentsOutlier, viewsOutlier} {
		if hit {
			support++
		}
	}

	return types.OutlierCandidate{
		Post:            post,
		Baseline:        baseline,
		EngagementTotal: engagement,
		Multiplier:      multiplierTier(float64(engagement), baseline.MedianEngagement),
		LikesOutlier:    likesOutlier,
		CommentsOutlier: commentsOutlier,
		ViewsOutlier:    viewsOutlier,
		AvailableCount:  available,
		SupportCount:    support,
	}
}

// multiplierTier buckets the engagement ratio. A non-positive median is
// tier 0, never 100.
func multiplierTier(engagement, medianEngagement float64) int {
	if medianEngagement <= 0 {
		return 0
	}
	ratio := engagement / medianEngagement
	switch {
	case ratio >= 100:
		return 100
	case ratio >= 50:
		return 50
	case ratio >= 10:
		return 10
	case ratio >= 5:
		return 5
	default:
		return 0
	}
}

// accept applies the availability-aware acceptance rule.
func (d *Detector) accept(c types.OutlierCandidate) bool {
	if c.Multiplier < 5 || c.EngagementTotal < int64(d.cfg.MinEngagement) {
		return false
	}
	switch {
	case c.AvailableCount >= 3 && c.SupportCount >= 2:
		return true
	case c.AvailableCount == 2 && c.SupportCount >= 2:
		return true
	case c.AvailableCount == 1 && c.SupportCount == 1 && c.EngagementTotal >= 500:
		return true
	}
	return false
}

// Scan runs a full locked scan: detect, upsert, summarize. A held lock
// skips the scan cleanly.
func (d *Detector) Scan(ctx context.Context) (*types.ScanResult, error) {
	owner := fmt.Sprintf("worker-%d", os.Getpid())
	acquired, err := d.locks.Acquire(ctx, LockName, owner, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !acquired {
		logger.Infof(ctx, "viral scanner already running, skipping")
		return &types.ScanResult{Status: "skipped", Reason: "already_running"}, nil
	}
	defer func() {
		if err := d.locks.Release(ctx, LockName); err != nil {
			logger.Errorf(ctx, "failed to release scan lock: %v", err)
		}
	}()

	outliers, err := d.DetectOutliers(ctx)
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	upserted := 0
	byMultiplier := map[string]int{"100x": 0, "50x": 0, "10x": 0, "5x": 0}
	for _, c := range outliers {
		byMultiplier[fmt.Sprintf("%dx", c.Multiplier)]++
		wrote, err := d.repo.UpsertOutlier(ctx, &types.ViralOutlier{
			SourceTable:      c.Post.SourceTable,
			SourceID:         c.Post.SourceID,
			Multiplier:       c.Multiplier,
			MedianEngagement: int64(c.Baseline.MedianEngagement),
			ActualEngagement: c.EngagementTotal,
			AvailableCount:   c.AvailableCount,
			SupportCount:     c.SupportCount,
			Hook:             hook(c.Post.Content),
			Platform:         c.Post.Platform,
			Username:         c.Post.Username,
			AnalyzedAt:       now,
			ExpiresAt:        now.AddDate(0, 0, d.cfg.ExpiryDays),
		})
		if err != nil {
			return nil, fmt.Errorf("upsert outlier %s/%d: %w", c.Post.SourceTable, c.Post.SourceID, err)
		}
		if wrote {
			upserted++
		}
	}

	return &types.ScanResult{
		Status:        "success",
		OutliersFound: len(outliers),
		Upserted:      upserted,
		ByMultiplier:  byMultiplier,
	}, nil
}

// Cleanup deletes expired outliers.
func (d *Detector) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := d.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	logger.Infof(ctx, "cleaned up %d expired outliers", deleted)
	return deleted, nil
}

func hook(content string) string {
	runes := []rune(content)
	if len(runes) <= hookChars {
		return content
	}
	return string(runes[:hookChars])
}

// median is the 50th percentile with linear interpolation, matching
// PERCENTILE_CONT.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
