package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type alertRepository struct {
	db *gorm.DB
}

// InsertAlert appends a spike alert.
func (r *alertRepository) InsertAlert(ctx context.Context, alert *types.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}
