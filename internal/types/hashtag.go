package types

import "time"

// HashtagPost is a post scraped for a hashtag. Unique by (Platform, PostID);
// CaptionHash is a secondary dedup key over the normalized caption.
type HashtagPost struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Hashtag       string    `gorm:"column:hashtag;index" json:"hashtag"`
	Platform      string    `gorm:"column:platform" json:"platform"`
	PostID        string    `gorm:"column:post_id" json:"post_id"`
	Username      string    `gorm:"column:username" json:"username"`
	Content       string    `gorm:"column:content" json:"content"`
	Media         JSON      `gorm:"column:media;type:jsonb" json:"media,omitempty"`
	PostedAt      time.Time `gorm:"column:posted_at" json:"posted_at"`
	Likes         int64     `gorm:"column:likes" json:"likes"`
	CommentsCount int64     `gorm:"column:comments_count" json:"comments_count"`
	Hashtags      JSON      `gorm:"column:hashtags;type:jsonb" json:"hashtags,omitempty"`
	ScrapedAt     time.Time `gorm:"column:scraped_at" json:"scraped_at"`
	CaptionHash   string    `gorm:"column:caption_hash" json:"caption_hash"`
}

// TableName implements gorm's Tabler.
func (HashtagPost) TableName() string { return "hashtag_posts" }

// HashtagCandidate is a hashtag drawn from competitor or hashtag posts with
// its observed frequency.
type HashtagCandidate struct {
	Hashtag   string
	Frequency int64
}

// ScrapedPost is the normalized record a platform scraper produces for one
// post under a hashtag.
type ScrapedPost struct {
	PostID   string    `json:"post_id"`
	Username string    `json:"username"`
	Caption  string    `json:"caption"`
	MediaURL string    `json:"media_url,omitempty"`
	PostedAt time.Time `json:"posted_at"`
	Likes    int64     `json:"likes"`
	Comments int64     `json:"comments"`
	Hashtags []string  `json:"hashtags,omitempty"`
}

// DiscoveryDetail reports the outcome for one hashtag in a discovery pass.
type DiscoveryDetail struct {
	Hashtag string `json:"hashtag"`
	Status  string `json:"status"`
	Posts   int    `json:"posts"`
	Error   string `json:"error,omitempty"`
}

// DiscoveryResult summarizes one discovery pass.
type DiscoveryResult struct {
	Status          string            `json:"status"`
	HashtagsScraped int               `json:"hashtags_scraped"`
	HashtagsFailed  int               `json:"hashtags_failed"`
	TotalPosts      int               `json:"total_posts_scraped"`
	Details         []DiscoveryDetail `json:"details,omitempty"`
	Message         string            `json:"message,omitempty"`
}

// RecursiveResult aggregates discovery passes across iterations.
type RecursiveResult struct {
	Status          string            `json:"status"`
	Iterations      int               `json:"iterations"`
	HashtagsScraped int               `json:"total_hashtags_scraped"`
	HashtagsFailed  int               `json:"total_hashtags_failed"`
	TotalPosts      int               `json:"total_posts_scraped"`
	IterationDetail []DiscoveryResult `json:"iteration_details,omitempty"`
}
