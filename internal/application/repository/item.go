package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type itemRepository struct {
	db *gorm.DB
}

// UpsertItem inserts or refreshes an item by (platform, external_id). Only
// the mutable engagement fields are updated on conflict; creation metadata
// is never rewritten.
func (r *itemRepository) UpsertItem(ctx context.Context, item *types.Item) (int64, error) {
	if item.Platform == "" {
		item.Platform = "reddit"
	}
	item.FetchedAt = time.Now().UTC()
	item.RawJSON = pruneRawColumn(item.RawJSON)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "num_comments", "quality_score", "fetched_at", "removed", "raw_json",
		}),
	}).Create(item).Error
	if err != nil {
		return 0, err
	}
	if item.ID != 0 {
		return item.ID, nil
	}

	// Postgres does not return the id when the conflict target matched but
	// no assignment changed; fetch it.
	var existing types.Item
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("platform = ? AND external_id = ?", item.Platform, item.ExternalID).
		First(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// CountItemsInWindow counts a source's items with created_utc in [start, end).
func (r *itemRepository) CountItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Item{}).
		Where("source_id = ? AND created_utc >= ? AND created_utc < ?", sourceID, start.UTC(), end.UTC()).
		Count(&count).Error
	return count, err
}

// TopItemsInWindow returns external ids in [start, end) by quality score
// descending.
func (r *itemRepository) TopItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&types.Item{}).
		Where("source_id = ? AND created_utc >= ? AND created_utc < ?", sourceID, start.UTC(), end.UTC()).
		Order("quality_score DESC").
		Limit(limit).
		Pluck("external_id", &ids).Error
	return ids, err
}

// ItemsWithoutCards returns items above the quality floor that have no
// strategy card yet, best first.
func (r *itemRepository) ItemsWithoutCards(ctx context.Context, minQuality float64, limit int) ([]*types.Item, error) {
	var items []*types.Item
	err := r.db.WithContext(ctx).
		Joins("LEFT JOIN strategy_cards sc ON sc.item_id = reddit_items.id").
		Where("sc.id IS NULL AND reddit_items.quality_score >= ?", minQuality).
		Order("reddit_items.quality_score DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
