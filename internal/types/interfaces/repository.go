package interfaces

import (
	"context"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// SourceRepository manages listener sources and their cascade lifecycle.
type SourceRepository interface {
	// CreateSource upserts a source by its natural key and returns it.
	CreateSource(ctx context.Context, src *types.Source) (*types.Source, error)
	// ListEnabledSources returns enabled sources ordered by id. userID 0
	// means all users.
	ListEnabledSources(ctx context.Context, userID int64) ([]*types.Source, error)
	// GetSource returns a source by id.
	GetSource(ctx context.Context, id int64) (*types.Source, error)
	// DeleteSource removes a source and cascades to state, items, comments,
	// chunks, cards and alerts. userID 0 skips ownership verification.
	DeleteSource(ctx context.Context, id int64, userID int64) (bool, error)
}

// ListenerStateRepository manages the per-source watermark.
type ListenerStateRepository interface {
	// GetState returns the state row for a source, or nil when absent.
	GetState(ctx context.Context, sourceID int64) (*types.ListenerState, error)
	// AdvanceState moves the watermark forward; it never decreases it.
	AdvanceState(ctx context.Context, sourceID int64, lastSeen time.Time) error
}

// ItemRepository manages fetched posts.
type ItemRepository interface {
	// UpsertItem inserts or refreshes an item by (platform, external_id) and
	// returns its id.
	UpsertItem(ctx context.Context, item *types.Item) (int64, error)
	// CountItemsInWindow counts a source's items with created_utc in
	// [start, end).
	CountItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time) (int64, error)
	// TopItemsInWindow returns external ids of a source's items in
	// [start, end) ordered by quality score descending.
	TopItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time, limit int) ([]string, error)
	// ItemsWithoutCards returns items with quality at or above minQuality
	// that have no strategy card, best first.
	ItemsWithoutCards(ctx context.Context, minQuality float64, limit int) ([]*types.Item, error)
}

// CommentRepository manages fetched comments.
type CommentRepository interface {
	// UpsertComment inserts or refreshes a comment by (item_id, external_id)
	// and returns its id.
	UpsertComment(ctx context.Context, comment *types.Comment) (int64, error)
}

// ChunkRepository manages retrieval chunks.
type ChunkRepository interface {
	// InsertChunk stores a chunk unless its hash already exists. Returns the
	// new id, or 0 when the chunk was a duplicate.
	InsertChunk(ctx context.Context, chunk *types.Chunk) (int64, error)
}

// StrategyCardRepository manages extracted tactic records.
type StrategyCardRepository interface {
	// InsertCard stores a strategy card and returns its id.
	InsertCard(ctx context.Context, card *types.StrategyCard) (int64, error)
}

// AlertRepository manages spike alerts.
type AlertRepository interface {
	// InsertAlert appends a spike alert.
	InsertAlert(ctx context.Context, alert *types.Alert) error
}

// ListenerStore bundles everything one scheduler pass needs.
type ListenerStore interface {
	SourceRepository
	ListenerStateRepository
	ItemRepository
	CommentRepository
	ChunkRepository
	StrategyCardRepository
	AlertRepository
}

// HashtagPostRepository manages scraped hashtag posts.
type HashtagPostRepository interface {
	// UpsertPosts stores scraped posts for a hashtag, keyed by
	// (platform, post_id). Each row also stores the caption hash as a
	// secondary dedup key; it is not part of the conflict check. Returns the
	// number stored.
	UpsertPosts(ctx context.Context, hashtag, platform string, posts []types.ScrapedPost) (int, error)
	// CompetitorHashtags returns hashtags from competitor posts over the
	// window, with frequencies, most frequent first.
	CompetitorHashtags(ctx context.Context, userID int64, groupID *int64, platform string, windowDays, limit int) ([]types.HashtagCandidate, error)
	// HashtagPostHashtags returns hashtags from already-scraped hashtag
	// posts over the window, with frequencies, most frequent first.
	HashtagPostHashtags(ctx context.Context, platform string, windowDays, limit int) ([]types.HashtagCandidate, error)
	// ScrapedHashtags returns the case-folded set of hashtags already
	// scraped for a platform.
	ScrapedHashtags(ctx context.Context, platform string) (map[string]struct{}, error)
}

// ViralOutlierRepository manages detected outliers.
type ViralOutlierRepository interface {
	// FetchPostsSince returns unified posts newer than the cutoff.
	FetchPostsSince(ctx context.Context, cutoff time.Time) ([]types.UnifiedPost, error)
	// UpsertOutlier stores an outlier by (source_table, source_id), updating
	// only when multiplier, engagement or support changed. Returns whether a
	// row was written.
	UpsertOutlier(ctx context.Context, outlier *types.ViralOutlier) (bool, error)
	// DeleteExpired removes outliers past their expiry. Returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// TaskLockRepository is the advisory cross-process mutex.
type TaskLockRepository interface {
	// Acquire deletes expired locks then tries to insert one for taskName
	// held by owner with the given TTL. Returns false when already held.
	Acquire(ctx context.Context, taskName, owner string, ttl time.Duration) (bool, error)
	// Release drops the lock row for taskName.
	Release(ctx context.Context, taskName string) error
}
