package outlier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type fakeViralRepo struct {
	posts    []types.UnifiedPost
	upserted []*types.ViralOutlier
	expired  int64
}

func (f *fakeViralRepo) FetchPostsSince(ctx context.Context, cutoff time.Time) ([]types.UnifiedPost, error) {
	var out []types.UnifiedPost
	for _, p := range f.posts {
		if !p.PostedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeViralRepo) UpsertOutlier(ctx context.Context, o *types.ViralOutlier) (bool, error) {
	for _, existing := range f.upserted {
		if existing.SourceTable == o.SourceTable && existing.SourceID == o.SourceID {
			changed := existing.Multiplier != o.Multiplier ||
				existing.ActualEngagement != o.ActualEngagement ||
				existing.SupportCount != o.SupportCount
			if changed {
				*existing = *o
			}
			return changed, nil
		}
	}
	f.upserted = append(f.upserted, o)
	return true, nil
}

func (f *fakeViralRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return f.expired, nil
}

type fakeLocks struct {
	held     map[string]bool
	acquires int
	releases int
}

func (f *fakeLocks) Acquire(ctx context.Context, taskName, owner string, ttl time.Duration) (bool, error) {
	f.acquires++
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[taskName] {
		return false, nil
	}
	f.held[taskName] = true
	return true, nil
}

func (f *fakeLocks) Release(ctx context.Context, taskName string) error {
	f.releases++
	delete(f.held, taskName)
	return nil
}

func viralCfg() config.ViralConfig {
	return config.ViralConfig{
		LikesFloor: 50, CommentsFloor: 10, ViewsFloor: 1000,
		MinEngagement: 100, WindowDays: 3, MedianWindowDays: 30,
		MinPosts: 5, ExpiryDays: 7,
	}
}

func i64(v int64) *int64 { return &v }

// historyFor seeds baseline posts for an account: five posts, ten days old,
// with the given typical likes and comments.
func historyFor(username string, likes, comments int64, now time.Time) []types.UnifiedPost {
	var posts []types.UnifiedPost
	for i := 0; i < 5; i++ {
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts",
			SourceID:    int64(1000 + i),
			Username:    username,
			Platform:    "instagram",
			Content:     fmt.Sprintf("baseline post %d", i),
			PostedAt:    now.AddDate(0, 0, -10).Add(time.Duration(i) * time.Hour),
			Likes:       likes,
			Comments:    comments,
		})
	}
	return posts
}

func newTestDetector(repo *fakeViralRepo, locks *fakeLocks, now time.Time) *Detector {
	d := NewDetector(repo, locks, viralCfg())
	d.now = func() time.Time { return now }
	return d
}

func TestDetectOutliers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("two-metric acceptance", func(t *testing.T) {
		// medians (the hit itself is in the baseline window): likes 500,
		// comments 50, engagement 550
		posts := historyFor("acct", 500, 50, now)
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 1,
			Username: "acct", Platform: "instagram",
			Content:  "huge hit",
			PostedAt: now.Add(-time.Hour),
			Likes:    5000, Comments: 250,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		require.Len(t, outliers, 1)
		o := outliers[0]
		assert.Equal(t, int64(5250), o.EngagementTotal)
		assert.Equal(t, 5, o.Multiplier) // ratio 5250/550 ≈ 9.55
		assert.True(t, o.LikesOutlier)
		assert.True(t, o.CommentsOutlier)
		assert.False(t, o.ViewsOutlier)
		assert.Equal(t, 2, o.AvailableCount)
		assert.Equal(t, 2, o.SupportCount)
	})

	t.Run("single metric at two available is rejected", func(t *testing.T) {
		posts := historyFor("acct", 500, 50, now)
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 2,
			Username: "acct", Platform: "instagram",
			Content:  "likes only",
			PostedAt: now.Add(-time.Hour),
			Likes:    9000, Comments: 0,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		assert.Empty(t, outliers)
	})

	t.Run("null views never a views outlier", func(t *testing.T) {
		posts := historyFor("acct", 500, 50, now)
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 3,
			Username: "acct", Platform: "instagram",
			Content:  "no views reported",
			PostedAt: now.Add(-time.Hour),
			Likes:    5000, Comments: 250,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		require.Len(t, outliers, 1)
		assert.False(t, outliers[0].ViewsOutlier)
		assert.LessOrEqual(t, outliers[0].SupportCount, outliers[0].AvailableCount)
		assert.LessOrEqual(t, outliers[0].AvailableCount, 3)
	})

	t.Run("three metrics with views", func(t *testing.T) {
		posts := historyFor("tok", 500, 50, now)
		for i := range posts {
			posts[i].Platform = "tiktok"
			posts[i].Views = i64(2000)
		}
		posts = append(posts, types.UnifiedPost{
			SourceTable: "hashtag_posts", SourceID: 4,
			Username: "tok", Platform: "tiktok",
			Content:  "viral video",
			PostedAt: now.Add(-time.Hour),
			Likes:    5000, Comments: 250, Views: i64(1_000_000),
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		require.Len(t, outliers, 1)
		o := outliers[0]
		assert.Equal(t, 3, o.AvailableCount)
		assert.Equal(t, 3, o.SupportCount)
		assert.True(t, o.ViewsOutlier)
	})

	t.Run("thin history excluded", func(t *testing.T) {
		posts := historyFor("thin", 500, 50, now)[:3] // below MinPosts
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 5,
			Username: "thin", Platform: "instagram",
			Content:  "spike",
			PostedAt: now.Add(-time.Hour),
			Likes:    50000, Comments: 5000,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		assert.Empty(t, outliers)
	})

	t.Run("zero median engagement contributes nothing", func(t *testing.T) {
		posts := historyFor("ghost", 0, 0, now)
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 6,
			Username: "ghost", Platform: "instagram",
			Content:  "sudden hit",
			PostedAt: now.Add(-time.Hour),
			Likes:    10000, Comments: 500,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		assert.Empty(t, outliers)
	})

	t.Run("posts outside viral window not evaluated", func(t *testing.T) {
		posts := historyFor("acct", 500, 50, now)
		posts = append(posts, types.UnifiedPost{
			SourceTable: "competitor_posts", SourceID: 7,
			Username: "acct", Platform: "instagram",
			Content:  "old viral post",
			PostedAt: now.AddDate(0, 0, -10),
			Likes:    5000, Comments: 250,
		})
		repo := &fakeViralRepo{posts: posts}
		d := newTestDetector(repo, &fakeLocks{}, now)

		outliers, err := d.DetectOutliers(ctx)
		require.NoError(t, err)
		assert.Empty(t, outliers)
	})
}

func TestMultiplierTier(t *testing.T) {
	assert.Equal(t, 0, multiplierTier(1000, 0))  // explicit edge: never 100
	assert.Equal(t, 0, multiplierTier(1000, -5)) // negative median
	assert.Equal(t, 0, multiplierTier(400, 100))
	assert.Equal(t, 5, multiplierTier(500, 100))
	assert.Equal(t, 10, multiplierTier(1000, 100))
	assert.Equal(t, 50, multiplierTier(5000, 100))
	assert.Equal(t, 100, multiplierTier(10000, 100))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 3.0, median([]float64{3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
}

func TestScan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	outlierPost := types.UnifiedPost{
		SourceTable: "competitor_posts", SourceID: 1,
		Username: "acct", Platform: "instagram",
		Content:  "huge hit",
		PostedAt: now.Add(-time.Hour),
		Likes:    5000, Comments: 250,
	}

	t.Run("scan upserts with expiry and releases lock", func(t *testing.T) {
		repo := &fakeViralRepo{posts: append(historyFor("acct", 500, 50, now), outlierPost)}
		locks := &fakeLocks{}
		d := newTestDetector(repo, locks, now)

		res, err := d.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, 1, res.OutliersFound)
		assert.Equal(t, 1, res.Upserted)
		assert.Equal(t, 1, res.ByMultiplier["5x"])

		require.Len(t, repo.upserted, 1)
		stored := repo.upserted[0]
		assert.Equal(t, "huge hit", stored.Hook)
		assert.Equal(t, now, stored.AnalyzedAt)
		assert.Equal(t, now.AddDate(0, 0, 7), stored.ExpiresAt)
		assert.Equal(t, 1, locks.releases)
		assert.False(t, locks.held[LockName])
	})

	t.Run("second identical scan updates nothing", func(t *testing.T) {
		repo := &fakeViralRepo{posts: append(historyFor("acct", 500, 50, now), outlierPost)}
		d := newTestDetector(repo, &fakeLocks{}, now)

		_, err := d.Scan(ctx)
		require.NoError(t, err)
		res, err := d.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.OutliersFound)
		assert.Equal(t, 0, res.Upserted)
	})

	t.Run("held lock skips", func(t *testing.T) {
		locks := &fakeLocks{held: map[string]bool{LockName: true}}
		repo := &fakeViralRepo{}
		d := newTestDetector(repo, locks, now)

		res, err := d.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, "skipped", res.Status)
		assert.Equal(t, "already_running", res.Reason)
		assert.Empty(t, repo.upserted)
		assert.Equal(t, 0, locks.releases)
	})
}

func TestCleanup(t *testing.T) {
	repo := &fakeViralRepo{expired: 4}
	d := newTestDetector(repo, &fakeLocks{}, time.Now())
	deleted, err := d.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}
