package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type listenerStateRepository struct {
	db *gorm.DB
}

// GetState returns the listener state for a source, or nil when the source
// has never completed a pass.
func (r *listenerStateRepository) GetState(ctx context.Context, sourceID int64) (*types.ListenerState, error) {
	var state types.ListenerState
	err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// AdvanceState moves the watermark forward. GREATEST keeps the watermark
// monotonic even if two passes race.
func (r *listenerStateRepository) AdvanceState(ctx context.Context, sourceID int64, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO listener_state (source_id, last_seen_created_utc, last_run_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			last_seen_created_utc = GREATEST(listener_state.last_seen_created_utc, EXCLUDED.last_seen_created_utc),
			last_run_at = EXCLUDED.last_run_at
	`, sourceID, lastSeen.UTC(), time.Now().UTC()).Error
}
