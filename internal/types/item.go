package types

import "time"

// Item is a top-level post fetched from a source. Unique by
// (Platform, ExternalID); upserts refresh score, comment count, quality,
// fetched_at, removed and raw_json but never rewrite creation metadata.
type Item struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID     int64     `gorm:"column:source_id;index" json:"source_id"`
	Platform     string    `gorm:"column:platform;default:reddit" json:"platform"`
	Subreddit    string    `gorm:"column:subreddit" json:"subreddit"`
	ExternalID   string    `gorm:"column:external_id" json:"external_id"`
	ExternalURL  string    `gorm:"column:external_url" json:"external_url"`
	Title        string    `gorm:"column:title" json:"title"`
	Body         string    `gorm:"column:body" json:"body"`
	Author       string    `gorm:"column:author" json:"author"`
	AuthorFlair  *string   `gorm:"column:author_flair" json:"author_flair,omitempty"`
	Score        int       `gorm:"column:score" json:"score"`
	NumComments  int       `gorm:"column:num_comments" json:"num_comments"`
	CreatedUTC   time.Time `gorm:"column:created_utc;index" json:"created_utc"`
	FetchedAt    time.Time `gorm:"column:fetched_at" json:"fetched_at"`
	QualityScore float64   `gorm:"column:quality_score" json:"quality_score"`
	NSFW         bool      `gorm:"column:nsfw" json:"nsfw"`
	Removed      bool      `gorm:"column:removed" json:"removed"`
	RawJSON      JSON      `gorm:"column:raw_json;type:jsonb" json:"raw_json,omitempty"`
}

// TableName implements gorm's Tabler.
func (Item) TableName() string { return "reddit_items" }

// Comment is a comment fetched for a high-quality item. Unique by
// (ItemID, ExternalID).
type Comment struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID           int64     `gorm:"column:item_id;index" json:"item_id"`
	ExternalID       string    `gorm:"column:external_id" json:"external_id"`
	ParentExternalID *string   `gorm:"column:parent_external_id" json:"parent_external_id,omitempty"`
	Body             string    `gorm:"column:body" json:"body"`
	Author           string    `gorm:"column:author" json:"author"`
	AuthorFlair      *string   `gorm:"column:author_flair" json:"author_flair,omitempty"`
	Score            int       `gorm:"column:score" json:"score"`
	CreatedUTC       time.Time `gorm:"column:created_utc" json:"created_utc"`
	FetchedAt        time.Time `gorm:"column:fetched_at" json:"fetched_at"`
	Removed          bool      `gorm:"column:removed" json:"removed"`
	RawJSON          JSON      `gorm:"column:raw_json;type:jsonb" json:"raw_json,omitempty"`
}

// TableName implements gorm's Tabler.
func (Comment) TableName() string { return "reddit_comments" }

// Chunk is a bounded, hashed text span produced for retrieval. Hash is the
// SHA-256 of the final chunk text; duplicate hashes are dropped on insert.
type Chunk struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID    int64  `gorm:"column:item_id;index" json:"item_id"`
	CommentID *int64 `gorm:"column:comment_id" json:"comment_id,omitempty"`
	Text      string `gorm:"column:chunk_text" json:"chunk_text"`
	Hash      string `gorm:"column:chunk_hash;uniqueIndex" json:"chunk_hash"`
}

// TableName implements gorm's Tabler.
func (Chunk) TableName() string { return "reddit_chunks" }

// CardStep is one ordered action inside a strategy card.
type CardStep struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
}

// CardEvidence anchors a card to its source post.
type CardEvidence struct {
	QuoteSnippets []string `json:"quote_snippets,omitempty"`
	Permalink     string   `json:"permalink"`
}

// StrategyCard is a structured tactic record extracted from an item.
// At most one card exists per item or comment.
type StrategyCard struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Origin          string    `gorm:"column:source;default:reddit" json:"source"`
	ItemID          int64     `gorm:"column:item_id;index" json:"item_id"`
	CommentID       *int64    `gorm:"column:comment_id" json:"comment_id,omitempty"`
	PlatformTargets JSON      `gorm:"column:platform_targets;type:jsonb" json:"platform_targets"`
	Niche           string    `gorm:"column:niche" json:"niche"`
	Tactic          string    `gorm:"column:tactic" json:"tactic"`
	Steps           JSON      `gorm:"column:steps;type:jsonb" json:"steps"`
	Preconditions   JSON      `gorm:"column:preconditions;type:jsonb" json:"preconditions"`
	Metrics         JSON      `gorm:"column:metrics;type:jsonb" json:"metrics"`
	Risks           JSON      `gorm:"column:risks;type:jsonb" json:"risks"`
	Confidence      float64   `gorm:"column:confidence" json:"confidence"`
	Evidence        JSON      `gorm:"column:evidence;type:jsonb" json:"evidence"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName implements gorm's Tabler.
func (StrategyCard) TableName() string { return "strategy_cards" }

// Alert records a detected volume spike for a source. Append-only.
type Alert struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID      int64     `gorm:"column:source_id;index" json:"source_id"`
	WindowStart   time.Time `gorm:"column:window_start" json:"window_start"`
	WindowEnd     time.Time `gorm:"column:window_end" json:"window_end"`
	Metric        string    `gorm:"column:metric" json:"metric"`
	CurrentValue  float64   `gorm:"column:current_value" json:"current_value"`
	PreviousValue float64   `gorm:"column:previous_value" json:"previous_value"`
	Factor        float64   `gorm:"column:factor" json:"factor"`
	TopItemIDs    JSON      `gorm:"column:top_item_ids;type:jsonb" json:"top_item_ids"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName implements gorm's Tabler.
func (Alert) TableName() string { return "reddit_alerts" }
