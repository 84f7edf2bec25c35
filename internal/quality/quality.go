// Package quality scores posts on weighted engagement and recency signals
// and decides which ones are worth storing, chunking and mining.
package quality

import (
	"math"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
)

// Tier labels for human-readable quality buckets.
const (
	TierLow         = "low"
	TierMedium      = "medium"
	TierHigh        = "high"
	TierExceptional = "exceptional"
)

// Scorer computes quality scores against a fixed weight configuration.
type Scorer struct {
	cfg config.QualityConfig
	now func() time.Time
}

// NewScorer builds a scorer from the quality configuration.
func NewScorer(cfg config.QualityConfig) *Scorer {
	return &Scorer{cfg: cfg, now: time.Now}
}

// NewScorerAt builds a scorer with a fixed clock, for tests.
func NewScorerAt(cfg config.QualityConfig, now func() time.Time) *Scorer {
	return &Scorer{cfg: cfg, now: now}
}

// Signals are the raw inputs to a score.
type Signals struct {
	Score       int
	NumComments int
	CreatedUTC  time.Time
	AuthorFlair string
	NSFW        bool
	Removed     bool
}

// Compute returns the weighted quality score, rounded to 4 decimals.
//
// score and comment counts pass through log1p for diminishing returns; the
// recency boost decays linearly to zero at MaxAgeHours; flair adds a flat
// bonus; nsfw and removed subtract flat penalties.
func (s *Scorer) Compute(sig Signals) float64 {
	scoreComponent := math.Log1p(math.Max(0, float64(sig.Score))) * s.cfg.ScoreWeight
	commentsComponent := math.Log1p(math.Max(0, float64(sig.NumComments))) * s.cfg.CommentsWeight

	ageHours := s.ageHours(sig.CreatedUTC)
	var recencyBoost float64
	if ageHours < s.cfg.MaxAgeHours {
		recencyBoost = (1 - ageHours/s.cfg.MaxAgeHours) * s.cfg.RecencyWeight
	}

	var flairBonus float64
	if sig.AuthorFlair != "" {
		flairBonus = s.cfg.FlairBonus
	}

	var penalty float64
	if sig.NSFW {
		penalty += s.cfg.NSFWPenalty
	}
	if sig.Removed {
		penalty += s.cfg.RemovedPenalty
	}

	quality := scoreComponent + commentsComponent + recencyBoost + flairBonus - penalty
	return math.Round(quality*10000) / 10000
}

// PassesFilter reports whether a post clears every storage threshold.
// Removed posts never pass.
func (s *Scorer) PassesFilter(sig Signals, qualityScore float64) bool {
	if sig.Removed {
		return false
	}
	if sig.Score < s.cfg.MinScore {
		return false
	}
	if sig.NumComments < s.cfg.MinComments {
		return false
	}
	if s.ageHours(sig.CreatedUTC) > s.cfg.MaxAgeHours {
		return false
	}
	return qualityScore >= s.cfg.MinQualityScore
}

// IsHighQuality reports whether a post clears twice the minimum quality.
// Only high-quality posts get their comments fetched.
func (s *Scorer) IsHighQuality(qualityScore float64) bool {
	return qualityScore >= s.cfg.MinQualityScore*2
}

// Tier maps a score to a human-readable bucket.
func (s *Scorer) Tier(qualityScore float64) string {
	switch {
	case qualityScore < s.cfg.MinQualityScore:
		return TierLow
	case qualityScore < s.cfg.MinQualityScore*2:
		return TierMedium
	case qualityScore < s.cfg.MinQualityScore*3:
		return TierHigh
	default:
		return TierExceptional
	}
}

func (s *Scorer) ageHours(created time.Time) float64 {
	age := s.now().UTC().Sub(created.UTC()).Hours()
	if age < 0 {
		return 0
	}
	return age
}
