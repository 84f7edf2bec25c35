package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// ErrSourceNotFound is returned when a source does not exist.
var ErrSourceNotFound = errors.New("source not found")

type sourceRepository struct {
	db *gorm.DB
}

// CreateSource upserts a source by its natural key. Value and subreddit are
// lowercased; an empty subreddit filter becomes NULL. On conflict the
// existing row is returned.
func (r *sourceRepository) CreateSource(ctx context.Context, src *types.Source) (*types.Source, error) {
	src.Value = strings.ToLower(strings.TrimSpace(src.Value))
	if src.Subreddit != nil {
		sub := strings.ToLower(strings.TrimSpace(*src.Subreddit))
		if sub == "" {
			src.Subreddit = nil
		} else {
			src.Subreddit = &sub
		}
	}
	src.Enabled = true

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(src).Error
	if err != nil {
		return nil, err
	}
	if src.ID != 0 {
		return src, nil
	}

	// Conflict: fetch the existing row.
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND value = ?", src.UserID, src.Kind, src.Value)
	if src.GroupID != nil {
		q = q.Where("group_id = ?", *src.GroupID)
	} else {
		q = q.Where("group_id IS NULL")
	}
	if src.Subreddit != nil {
		q = q.Where("subreddit = ?", *src.Subreddit)
	} else {
		q = q.Where("subreddit IS NULL")
	}

	var existing types.Source
	if err := q.First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return &existing, nil
}

// ListEnabledSources returns enabled sources ordered by id; userID 0 means
// all users.
func (r *sourceRepository) ListEnabledSources(ctx context.Context, userID int64) ([]*types.Source, error) {
	q := r.db.WithContext(ctx).Where("enabled = TRUE")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var sources []*types.Source
	if err := q.Order("id").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// GetSource returns a source by id.
func (r *sourceRepository) GetSource(ctx context.Context, id int64) (*types.Source, error) {
	var src types.Source
	if err := r.db.WithContext(ctx).First(&src, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return &src, nil
}

// DeleteSource removes a source and everything hanging off it. userID 0
// skips ownership verification.
func (r *sourceRepository) DeleteSource(ctx context.Context, id int64, userID int64) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if userID != 0 {
			q = q.Where("user_id = ?", userID)
		}
		res := q.Delete(&types.Source{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Where("source_id = ?", id).Delete(&types.ListenerState{}).Error; err != nil {
			return err
		}
		if err := tx.Where("source_id = ?", id).Delete(&types.Alert{}).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM strategy_cards WHERE item_id IN (SELECT id FROM reddit_items WHERE source_id = ?)", id,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM reddit_chunks WHERE item_id IN (SELECT id FROM reddit_items WHERE source_id = ?)", id,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM reddit_comments WHERE item_id IN (SELECT id FROM reddit_items WHERE source_id = ?)", id,
		).Error; err != nil {
			return err
		}
		return tx.Where("source_id = ?", id).Delete(&types.Item{}).Error
	})
	return deleted, err
}
