package types

import "time"

// SourceKind distinguishes subreddit listeners from keyword searches.
type SourceKind string

const (
	// SourceKindSubreddit follows a subreddit's new listing.
	SourceKindSubreddit SourceKind = "subreddit"
	// SourceKindKeyword follows a search query, optionally restricted to a subreddit.
	SourceKindKeyword SourceKind = "keyword"
)

// Source is a named provenance owned by a tenant. Value and Subreddit are
// lowercased on write; the tuple (UserID, GroupID, Kind, Value, Subreddit)
// is unique.
type Source struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"column:user_id;index" json:"user_id"`
	GroupID   *int64     `gorm:"column:group_id" json:"group_id,omitempty"`
	Kind      SourceKind `gorm:"column:type" json:"type"`
	Value     string     `gorm:"column:value" json:"value"`
	Subreddit *string    `gorm:"column:subreddit" json:"subreddit,omitempty"`
	Enabled   bool       `gorm:"column:enabled;default:true" json:"enabled"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName implements gorm's Tabler.
func (Source) TableName() string { return "reddit_sources" }

// ListenerState is the per-source watermark: the newest created_utc already
// processed. Exactly one row per source; the watermark never decreases.
type ListenerState struct {
	SourceID           int64     `gorm:"column:source_id;primaryKey" json:"source_id"`
	LastSeenCreatedUTC time.Time `gorm:"column:last_seen_created_utc" json:"last_seen_created_utc"`
	LastRunAt          time.Time `gorm:"column:last_run_at" json:"last_run_at"`
}

// TableName implements gorm's Tabler.
func (ListenerState) TableName() string { return "listener_state" }
