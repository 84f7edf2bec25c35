package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type taskLockRepository struct {
	db *gorm.DB
}

// Acquire deletes expired locks then races an insert for taskName. Returns
// false when another live holder already has it.
func (r *taskLockRepository) Acquire(ctx context.Context, taskName, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&types.TaskLock{}).Error; err != nil {
		return false, err
	}

	lock := types.TaskLock{
		TaskName:  taskName,
		LockedAt:  now,
		LockedBy:  owner,
		ExpiresAt: now.Add(ttl),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_name"}},
		DoNothing: true,
	}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release drops the lock row.
func (r *taskLockRepository) Release(ctx context.Context, taskName string) error {
	return r.db.WithContext(ctx).
		Where("task_name = ?", taskName).
		Delete(&types.TaskLock{}).Error
}
