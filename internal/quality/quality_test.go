package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
)

var testCfg = config.QualityConfig{
	MinQualityScore: 0.3,
	MinScore:        5,
	MinComments:     2,
	MaxAgeHours:     168,
	ScoreWeight:     0.4,
	CommentsWeight:  0.3,
	RecencyWeight:   0.2,
	FlairBonus:      0.1,
	NSFWPenalty:     0.5,
	RemovedPenalty:  1.0,
}

func fixedScorer(t *testing.T) (*Scorer, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewScorerAt(testCfg, func() time.Time { return now }), now
}

func TestCompute(t *testing.T) {
	s, now := fixedScorer(t)

	t.Run("known value", func(t *testing.T) {
		got := s.Compute(Signals{
			Score:       50,
			NumComments: 12,
			CreatedUTC:  now.Add(-time.Hour),
		})
		want := math.Log1p(50)*0.4 + math.Log1p(12)*0.3 + (1-1.0/168)*0.2
		assert.InDelta(t, want, got, 0.0001)
	})

	t.Run("monotonic in score", func(t *testing.T) {
		base := Signals{NumComments: 3, CreatedUTC: now.Add(-2 * time.Hour)}
		prev := math.Inf(-1)
		for _, score := range []int{0, 1, 10, 100, 1000} {
			sig := base
			sig.Score = score
			q := s.Compute(sig)
			assert.Greater(t, q, prev)
			prev = q
		}
	})

	t.Run("monotonic in comments", func(t *testing.T) {
		base := Signals{Score: 10, CreatedUTC: now.Add(-2 * time.Hour)}
		prev := math.Inf(-1)
		for _, n := range []int{0, 2, 20, 200} {
			sig := base
			sig.NumComments = n
			q := s.Compute(sig)
			assert.Greater(t, q, prev)
			prev = q
		}
	})

	t.Run("no recency boost past max age", func(t *testing.T) {
		old := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-200 * time.Hour)})
		fresh := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour)})
		assert.Greater(t, fresh, old)
		assert.InDelta(t, math.Log1p(10)*0.4+math.Log1p(5)*0.3, old, 0.0001)
	})

	t.Run("negative score clamped", func(t *testing.T) {
		q := s.Compute(Signals{Score: -40, NumComments: 0, CreatedUTC: now.Add(-200 * time.Hour)})
		assert.Equal(t, 0.0, q)
	})

	t.Run("penalties subtract", func(t *testing.T) {
		clean := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour)})
		nsfw := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour), NSFW: true})
		removed := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour), Removed: true})
		assert.InDelta(t, clean-0.5, nsfw, 0.0001)
		assert.InDelta(t, clean-1.0, removed, 0.0001)
	})

	t.Run("flair bonus", func(t *testing.T) {
		plain := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour)})
		flaired := s.Compute(Signals{Score: 10, NumComments: 5, CreatedUTC: now.Add(-time.Hour), AuthorFlair: "Indie Dev"})
		assert.InDelta(t, plain+0.1, flaired, 0.0001)
	})
}

func TestPassesFilter(t *testing.T) {
	s, now := fixedScorer(t)
	ok := Signals{Score: 50, NumComments: 12, CreatedUTC: now.Add(-time.Hour)}

	t.Run("passes", func(t *testing.T) {
		assert.True(t, s.PassesFilter(ok, s.Compute(ok)))
	})

	t.Run("removed never passes", func(t *testing.T) {
		sig := ok
		sig.Removed = true
		assert.False(t, s.PassesFilter(sig, 5.0))
	})

	t.Run("below min score", func(t *testing.T) {
		sig := ok
		sig.Score = 4
		assert.False(t, s.PassesFilter(sig, 5.0))
	})

	t.Run("below min comments", func(t *testing.T) {
		sig := ok
		sig.NumComments = 1
		assert.False(t, s.PassesFilter(sig, 5.0))
	})

	t.Run("too old", func(t *testing.T) {
		sig := ok
		sig.CreatedUTC = now.Add(-169 * time.Hour)
		assert.False(t, s.PassesFilter(sig, 5.0))
	})

	t.Run("below min quality", func(t *testing.T) {
		assert.False(t, s.PassesFilter(ok, 0.29))
	})
}

func TestIsHighQualityAndTier(t *testing.T) {
	s, _ := fixedScorer(t)

	assert.False(t, s.IsHighQuality(0.59))
	assert.True(t, s.IsHighQuality(0.6))

	assert.Equal(t, TierLow, s.Tier(0.1))
	assert.Equal(t, TierMedium, s.Tier(0.4))
	assert.Equal(t, TierHigh, s.Tier(0.7))
	assert.Equal(t, TierExceptional, s.Tier(1.5))
}
