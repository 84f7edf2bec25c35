// Package repository implements the persistence layer over Postgres. All
// writes are upserts gated on natural keys; raw payloads pass through
// semantic pruning before they are stored.
package repository

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres with gorm.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Store bundles every repository over one database handle.
type Store struct {
	*sourceRepository
	*listenerStateRepository
	*itemRepository
	*commentRepository
	*chunkRepository
	*strategyCardRepository
	*alertRepository
	*hashtagPostRepository
	*viralOutlierRepository
	*taskLockRepository
}

// NewStore builds the combined store.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		sourceRepository:        &sourceRepository{db: db},
		listenerStateRepository: &listenerStateRepository{db: db},
		itemRepository:          &itemRepository{db: db},
		commentRepository:       &commentRepository{db: db},
		chunkRepository:         &chunkRepository{db: db},
		strategyCardRepository:  &strategyCardRepository{db: db},
		alertRepository:         &alertRepository{db: db},
		hashtagPostRepository:   &hashtagPostRepository{db: db},
		viralOutlierRepository:  &viralOutlierRepository{db: db},
		taskLockRepository:      &taskLockRepository{db: db},
	}
}
