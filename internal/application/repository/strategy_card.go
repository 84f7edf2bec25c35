package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type strategyCardRepository struct {
	db *gorm.DB
}

// InsertCard stores a strategy card. At most one card exists per item; a
// second extraction for the same item is a no-op.
func (r *strategyCardRepository) InsertCard(ctx context.Context, card *types.StrategyCard) (int64, error) {
	if card.Origin == "" {
		card.Origin = "reddit"
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoNothing: true,
	}).Create(card).Error
	if err != nil {
		return 0, err
	}
	return card.ID, nil
}
