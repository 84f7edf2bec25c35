package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type commentRepository struct {
	db *gorm.DB
}

// UpsertComment inserts or refreshes a comment by (item_id, external_id).
func (r *commentRepository) UpsertComment(ctx context.Context, comment *types.Comment) (int64, error) {
	comment.FetchedAt = time.Now().UTC()
	comment.RawJSON = pruneRawColumn(comment.RawJSON)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"body", "score", "fetched_at", "removed", "raw_json",
		}),
	}).Create(comment).Error
	if err != nil {
		return 0, err
	}
	if comment.ID != 0 {
		return comment.ID, nil
	}

	var existing types.Comment
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("item_id = ? AND external_id = ?", comment.ItemID, comment.ExternalID).
		First(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}
