package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type viralOutlierRepository struct {
	db *gorm.DB
}

// FetchPostsSince returns unified posts newer than the cutoff.
func (r *viralOutlierRepository) FetchPostsSince(ctx context.Context, cutoff time.Time) ([]types.UnifiedPost, error) {
	var posts []types.UnifiedPost
	err := r.db.WithContext(ctx).
		Where("posted_at >= ?", cutoff.UTC()).
		Find(&posts).Error
	return posts, err
}

// UpsertOutlier stores an outlier by (source_table, source_id). The caller
// sets AnalyzedAt and ExpiresAt; the update fires only when multiplier,
// engagement or support changed, so repeat scans over unchanged data touch
// no rows.
func (r *viralOutlierRepository) UpsertOutlier(ctx context.Context, o *types.ViralOutlier) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO viral_outliers (
			source_table, source_id, multiplier, median_engagement, actual_engagement,
			available_count, support_count, hook, platform, username, analyzed_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_table, source_id) DO UPDATE SET
			multiplier = EXCLUDED.multiplier,
			actual_engagement = EXCLUDED.actual_engagement,
			available_count = EXCLUDED.available_count,
			support_count = EXCLUDED.support_count,
			analyzed_at = EXCLUDED.analyzed_at,
			expires_at = EXCLUDED.expires_at
		WHERE viral_outliers.multiplier != EXCLUDED.multiplier
		   OR viral_outliers.actual_engagement != EXCLUDED.actual_engagement
		   OR viral_outliers.support_count != EXCLUDED.support_count
	`, o.SourceTable, o.SourceID, o.Multiplier, o.MedianEngagement, o.ActualEngagement,
		o.AvailableCount, o.SupportCount, o.Hook, o.Platform, o.Username,
		o.AnalyzedAt.UTC(), o.ExpiresAt.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired removes outliers past their expiry.
func (r *viralOutlierRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&types.ViralOutlier{})
	return res.RowsAffected, res.Error
}
