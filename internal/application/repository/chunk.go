package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type chunkRepository struct {
	db *gorm.DB
}

// InsertChunk stores a chunk unless its hash already exists. Duplicate
// inserts are silent no-ops returning id 0.
func (r *chunkRepository) InsertChunk(ctx context.Context, chunk *types.Chunk) (int64, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_hash"}},
		DoNothing: true,
	}).Create(chunk).Error
	if err != nil {
		return 0, err
	}
	return chunk.ID, nil
}
