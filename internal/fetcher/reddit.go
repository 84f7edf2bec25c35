// Package fetcher reads Reddit through its public .json endpoints. No
// OAuth involved; the listings at /r/<sub>/new.json, /search.json and
// /comments/<id>.json are enough for the whole pipeline.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

const (
	baseURL = "https://www.reddit.com"

	// Reddit blocks anonymous clients without a descriptive User-Agent.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	baseDelay      = 2 * time.Second
	maxDelay       = 60 * time.Second
	maxRetries     = 5
	requestTimeout = 30 * time.Second

	pageSize = 100
)

// ErrForbidden marks a 403 from Reddit; never retried.
var ErrForbidden = errors.New("reddit returned 403 forbidden")

// ErrStopIteration is returned by iteration callbacks to halt cleanly.
var ErrStopIteration = errors.New("stop iteration")

// Client fetches Reddit listings with rate limiting and backoff. The rate
// limiter is shared, so concurrent source passes still space their requests.
type Client struct {
	http  *resty.Client
	sleep func(time.Duration)

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient builds a Reddit client. An empty userAgent falls back to the
// default.
func NewClient(userAgent string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, sleep: time.Sleep}
}

// listing mirrors the relevant slice of Reddit's listing envelope.
type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string                 `json:"kind"`
			Data map[string]interface{} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// rateLimit enforces the minimum delay between requests with a little
// jitter so bursts never line up.
func (c *Client) rateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < baseDelay {
		c.sleep(baseDelay - elapsed + time.Duration(rand.Int63n(int64(400*time.Millisecond))))
	}
	c.lastRequest = time.Now()
}

// getWithBackoff fetches a URL with bounded exponential backoff on 429 and
// transient errors. 403 aborts immediately.
func (c *Client) getWithBackoff(ctx context.Context, path string, params map[string]string, out interface{}) error {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.rateLimit()

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)

		switch {
		case err != nil:
			// transient network failure
		case resp.StatusCode() == 200:
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode reddit response: %w", err)
			}
			return nil
		case resp.StatusCode() == 429:
			// rate limited, fall through to backoff
		case resp.StatusCode() == 403:
			logger.Errorf(ctx, "forbidden (403) from reddit for %s", path)
			return ErrForbidden
		default:
			return fmt.Errorf("reddit returned HTTP %d for %s", resp.StatusCode(), path)
		}

		delay := baseDelay * (1 << attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		delay += time.Duration(rand.Int63n(int64(delay) / 10))
		logger.Warnf(ctx, "reddit request failed (attempt %d/%d), backing off %s", attempt, maxRetries, delay)
		c.sleep(delay)
	}
	return fmt.Errorf("max retries exceeded for %s", path)
}

// FetchSubredditNew yields new posts from a subreddit, newest first,
// stopping at posts created at or before lastSeen.
func (c *Client) FetchSubredditNew(ctx context.Context, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error {
	return c.iterListing(ctx, fmt.Sprintf("/r/%s/new.json", subreddit), nil, limit, lastSeen, fn)
}

// FetchSearch yields search results for a query, optionally restricted to
// one subreddit, newest first.
func (c *Client) FetchSearch(ctx context.Context, query, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error {
	params := map[string]string{"q": query, "sort": "new"}
	path := "/search.json"
	if subreddit != "" {
		path = fmt.Sprintf("/r/%s/search.json", subreddit)
		params["restrict_sr"] = "on"
	}
	return c.iterListing(ctx, path, params, limit, lastSeen, fn)
}

func (c *Client) iterListing(ctx context.Context, path string, extra map[string]string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error {
	after := ""
	fetched := 0

	for fetched < limit {
		page := limit - fetched
		if page > pageSize {
			page = pageSize
		}
		params := map[string]string{"limit": strconv.Itoa(page)}
		for k, v := range extra {
			params[k] = v
		}
		if after != "" {
			params["after"] = after
		}

		var data listing
		if err := c.getWithBackoff(ctx, path, params, &data); err != nil {
			return err
		}
		if len(data.Data.Children) == 0 {
			return nil
		}

		for _, child := range data.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			post := ParsePost(child.Data)
			if lastSeen != nil && !post.CreatedUTC.After(*lastSeen) {
				logger.Debugf(ctx, "reached already-seen post at %s", post.CreatedUTC)
				return nil
			}
			fetched++
			if err := fn(post); err != nil {
				if errors.Is(err, ErrStopIteration) {
					return nil
				}
				return err
			}
			if fetched >= limit {
				return nil
			}
		}

		after = data.Data.After
		if after == "" {
			return nil
		}
	}
	return nil
}

// FetchComments yields top comments for a submission, skipping removed and
// deleted bodies.
func (c *Client) FetchComments(ctx context.Context, submissionID string, limit, depth int, fn func(types.RedditComment) error) error {
	cleanID := submissionID
	if len(cleanID) > 3 && cleanID[:3] == "t3_" {
		cleanID = cleanID[3:]
	}

	params := map[string]string{
		"limit": strconv.Itoa(limit),
		"depth": strconv.Itoa(depth),
		"sort":  "top",
	}

	// The comments endpoint returns a two-element array: post, comments.
	var pages []listing
	if err := c.getWithBackoff(ctx, fmt.Sprintf("/comments/%s.json", cleanID), params, &pages); err != nil {
		return err
	}
	if len(pages) < 2 {
		return nil
	}

	count := 0
	for _, child := range pages[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		body, _ := child.Data["body"].(string)
		if body == "[removed]" || body == "[deleted]" {
			continue
		}
		count++
		if err := fn(ParseComment(child.Data)); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
		if count >= limit {
			return nil
		}
	}
	return nil
}

// ParsePost converts a raw listing child into the normalized record.
func ParsePost(data map[string]interface{}) types.RedditPost {
	return types.RedditPost{
		ExternalID:  "t3_" + str(data, "id"),
		ExternalURL: "https://reddit.com" + str(data, "permalink"),
		Subreddit:   str(data, "subreddit"),
		Title:       str(data, "title"),
		Body:        str(data, "selftext"),
		Author:      strDefault(data, "author", "[deleted]"),
		AuthorFlair: strPtr(data, "author_flair_text"),
		Score:       num(data, "score"),
		NumComments: num(data, "num_comments"),
		CreatedUTC:  epoch(data, "created_utc"),
		NSFW:        boolean(data, "over_18"),
		Removed:     data["removed_by_category"] != nil,
		RawJSON:     data,
	}
}

// ParseComment converts a raw comment child into the normalized record.
func ParseComment(data map[string]interface{}) types.RedditComment {
	body := str(data, "body")
	return types.RedditComment{
		ExternalID:       "t1_" + str(data, "id"),
		ParentExternalID: strPtr(data, "parent_id"),
		Body:             body,
		Author:           strDefault(data, "author", "[deleted]"),
		AuthorFlair:      strPtr(data, "author_flair_text"),
		Score:            num(data, "score"),
		CreatedUTC:       epoch(data, "created_utc"),
		Removed:          body == "[removed]" || body == "[deleted]",
		RawJSON:          data,
	}
}

func str(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func strDefault(data map[string]interface{}, key, def string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return def
}

func strPtr(data map[string]interface{}, key string) *string {
	if v, ok := data[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func num(data map[string]interface{}, key string) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolean(data map[string]interface{}, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func epoch(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(float64); ok {
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}
