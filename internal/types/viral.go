package types

import "time"

// UnifiedPost is one row of the unified_posts view joining competitor and
// hashtag posts. Views is nil on platforms that do not expose view counts.
type UnifiedPost struct {
	SourceTable string    `gorm:"column:source_table" json:"source_table"`
	SourceID    int64     `gorm:"column:source_id" json:"source_id"`
	Username    string    `gorm:"column:username" json:"username"`
	Platform    string    `gorm:"column:platform" json:"platform"`
	Content     string    `gorm:"column:content" json:"content"`
	PostedAt    time.Time `gorm:"column:posted_at" json:"posted_at"`
	Likes       int64     `gorm:"column:likes" json:"likes"`
	Comments    int64     `gorm:"column:comments" json:"comments"`
	Views       *int64    `gorm:"column:views" json:"views,omitempty"`
}

// TableName implements gorm's Tabler.
func (UnifiedPost) TableName() string { return "unified_posts" }

// AccountBaseline holds an account's rolling medians. Accounts with fewer
// than the minimum post count or a non-positive median engagement are not
// represented.
type AccountBaseline struct {
	Username         string
	Platform         string
	MedianLikes      float64
	MedianComments   float64
	MedianViews      *float64
	MedianEngagement float64
	PostCount        int
}

// ViralOutlier is a post whose per-metric performance significantly exceeds
// its account's rolling median. Unique by (SourceTable, SourceID).
type ViralOutlier struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceTable      string    `gorm:"column:source_table" json:"source_table"`
	SourceID         int64     `gorm:"column:source_id" json:"source_id"`
	Multiplier       int       `gorm:"column:multiplier" json:"multiplier"`
	MedianEngagement int64     `gorm:"column:median_engagement" json:"median_engagement"`
	ActualEngagement int64     `gorm:"column:actual_engagement" json:"actual_engagement"`
	AvailableCount   int       `gorm:"column:available_count" json:"available_count"`
	SupportCount     int       `gorm:"column:support_count" json:"support_count"`
	Hook             string    `gorm:"column:hook" json:"hook"`
	Platform         string    `gorm:"column:platform" json:"platform"`
	Username         string    `gorm:"column:username" json:"username"`
	AnalyzedAt       time.Time `gorm:"column:analyzed_at" json:"analyzed_at"`
	ExpiresAt        time.Time `gorm:"column:expires_at" json:"expires_at"`
}

// TableName implements gorm's Tabler.
func (ViralOutlier) TableName() string { return "viral_outliers" }

// OutlierCandidate is the full per-post evaluation before acceptance
// filtering; ViralOutlier keeps only the persisted projection.
type OutlierCandidate struct {
	Post            UnifiedPost
	Baseline        AccountBaseline
	EngagementTotal int64
	Multiplier      int
	LikesOutlier    bool
	CommentsOutlier bool
	ViewsOutlier    bool
	AvailableCount  int
	SupportCount    int
}

// ScanResult summarizes one viral scanner run.
type ScanResult struct {
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	OutliersFound int            `json:"outliers_found"`
	Upserted      int            `json:"upserted"`
	ByMultiplier  map[string]int `json:"by_multiplier,omitempty"`
}

// TaskLock is the advisory cross-process mutex. Entries past ExpiresAt are
// treated as absent so crashed holders self-heal.
type TaskLock struct {
	TaskName  string    `gorm:"column:task_name;primaryKey" json:"task_name"`
	LockedAt  time.Time `gorm:"column:locked_at" json:"locked_at"`
	LockedBy  string    `gorm:"column:locked_by" json:"locked_by"`
	ExpiresAt time.Time `gorm:"column:expires_at" json:"expires_at"`
}

// TableName implements gorm's Tabler.
func (TaskLock) TableName() string { return "task_locks" }
