package interfaces

import (
	"context"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// RedditFetcher yields normalized posts and comments from Reddit's public
// JSON endpoints. Iteration is callback-based: the fetcher calls fn for each
// record, newest first, and stops when fn returns an error or the listing is
// exhausted. Implementations enforce their own rate limiting and backoff.
type RedditFetcher interface {
	// FetchSubredditNew yields new posts from a subreddit, stopping at posts
	// created at or before lastSeen when lastSeen is non-nil.
	FetchSubredditNew(ctx context.Context, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error
	// FetchSearch yields search results for a query, optionally restricted
	// to one subreddit.
	FetchSearch(ctx context.Context, query, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error
	// FetchComments yields top comments for a submission, bounded by count
	// and tree depth.
	FetchComments(ctx context.Context, submissionID string, limit, depth int, fn func(types.RedditComment) error) error
}

// PlatformScraper is the contract the hashtag-discovery engine depends on.
// Concrete browser-automation scrapers live outside this repository.
type PlatformScraper interface {
	// ScrapeHashtag collects up to maxPosts posts for a hashtag.
	ScrapeHashtag(ctx context.Context, hashtag string, maxPosts int) ([]types.ScrapedPost, error)
	// ScrapeProfile collects up to maxPosts recent posts for a profile.
	ScrapeProfile(ctx context.Context, username string, maxPosts int) ([]types.ScrapedPost, error)
	// Close releases the underlying driver.
	Close() error
}

// ScraperFactory builds a platform scraper bound to an optional proxy.
// An empty proxy means a direct connection.
type ScraperFactory func(ctx context.Context, platform, proxy string) (PlatformScraper, error)

// ProxyPool hands out verified proxies and refreshes the verified list.
type ProxyPool interface {
	// GetWorkingProxy returns a verified proxy URL, or "" when none exist.
	GetWorkingProxy() string
	// ValidateAll refreshes the verified list from the public sources and
	// returns the working proxies.
	ValidateAll(ctx context.Context) ([]string, error)
}
