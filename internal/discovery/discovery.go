// Package discovery grows the set of scraped hashtags by mining competitor
// posts and previously scraped hashtag posts, scraping whatever has not
// been seen yet. Recursion is hard-bounded; scrape failures rotate proxies.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types/interfaces"
)

// maxIterationsLimit is the hard recursion cap; requests above it are
// clamped with a warning.
const maxIterationsLimit = 10

// seedFrequency forces seed hashtags to the top of the queue.
const seedFrequency = 999

const (
	interHashtagDelay = 5 * time.Second
	initRetryDelay    = 3 * time.Second
)

// Options scope one discovery engine to a tenant, platform and seed set.
type Options struct {
	UserID   int64
	GroupID  *int64
	Platform string
	// Proxy is an explicit proxy URL, proxy.Direct to disable proxies, or
	// empty for auto-selection from the pool.
	Proxy string
	Seeds []string

	MaxPostsPerHashtag int
}

// Engine is the hashtag discovery engine.
type Engine struct {
	repo    interfaces.HashtagPostRepository
	pool    interfaces.ProxyPool
	factory interfaces.ScraperFactory
	cfg     config.DiscoveryConfig
	opts    Options

	proxy   string
	noProxy bool
	sleep   func(time.Duration)
}

// NewEngine builds a discovery engine. When no explicit proxy is given the
// engine pulls one from the pool, triggering a validation pass if the
// verified list is empty.
func NewEngine(ctx context.Context, repo interfaces.HashtagPostRepository, pool interfaces.ProxyPool, factory interfaces.ScraperFactory, cfg config.DiscoveryConfig, opts Options) *Engine {
	if opts.MaxPostsPerHashtag == 0 {
		opts.MaxPostsPerHashtag = cfg.MaxPostsPerHashtag
	}
	opts.Platform = strings.ToLower(opts.Platform)

	e := &Engine{
		repo:    repo,
		pool:    pool,
		factory: factory,
		cfg:     cfg,
		opts:    opts,
		sleep:   time.Sleep,
	}

	switch opts.Proxy {
	case "DIRECT":
		logger.Infof(ctx, "direct connection mode enabled (no proxy)")
		e.noProxy = true
	case "":
		e.proxy = pool.GetWorkingProxy()
		if e.proxy == "" {
			logger.Infof(ctx, "no verified proxies found, validating fresh proxy list")
			if _, err := pool.ValidateAll(ctx); err != nil {
				logger.Warnf(ctx, "proxy validation failed: %v", err)
			}
			e.proxy = pool.GetWorkingProxy()
		}
		if e.proxy == "" {
			logger.Warnf(ctx, "no working proxies, scraping will use direct connection")
		}
	default:
		e.proxy = opts.Proxy
	}
	return e
}

// UnscrapedHashtags unions the competitor and hashtag-post candidate sets,
// summing frequencies on the case-folded tag, drops everything already
// scraped for the platform, and returns the most frequent `limit` tags.
func (e *Engine) UnscrapedHashtags(ctx context.Context, limit int) ([]types.HashtagCandidate, error) {
	competitor, err := e.repo.CompetitorHashtags(ctx, e.opts.UserID, e.opts.GroupID, e.opts.Platform, e.cfg.HashtagWindowDays, limit*2)
	if err != nil {
		logger.Errorf(ctx, "error extracting competitor hashtags: %v", err)
		competitor = nil
	}

	var fromPosts []types.HashtagCandidate
	for _, seed := range e.opts.Seeds {
		fromPosts = append(fromPosts, types.HashtagCandidate{
			Hashtag:   strings.TrimPrefix(seed, "#"),
			Frequency: seedFrequency,
		})
	}
	scrapedTags, err := e.repo.HashtagPostHashtags(ctx, e.opts.Platform, e.cfg.HashtagWindowDays, limit*2)
	if err != nil {
		logger.Errorf(ctx, "error extracting hashtag post hashtags: %v", err)
	} else {
		fromPosts = append(fromPosts, scrapedTags...)
	}

	merged := make(map[string]*types.HashtagCandidate)
	var order []string
	for _, c := range append(competitor, fromPosts...) {
		key := strings.ToLower(c.Hashtag)
		if existing, ok := merged[key]; ok {
			existing.Frequency += c.Frequency
			continue
		}
		merged[key] = &types.HashtagCandidate{Hashtag: c.Hashtag, Frequency: c.Frequency}
		order = append(order, key)
	}

	all := make([]types.HashtagCandidate, 0, len(order))
	for _, key := range order {
		all = append(all, *merged[key])
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Frequency > all[j].Frequency })

	scraped, err := e.repo.ScrapedHashtags(ctx, e.opts.Platform)
	if err != nil {
		return nil, fmt.Errorf("load scraped hashtags: %w", err)
	}

	var unscraped []types.HashtagCandidate
	for _, c := range all {
		if _, done := scraped[strings.ToLower(c.Hashtag)]; done {
			continue
		}
		unscraped = append(unscraped, c)
		if len(unscraped) >= limit {
			break
		}
	}
	logger.Infof(ctx, "found %d unscraped hashtags to scrape", len(unscraped))
	return unscraped, nil
}

// ScrapeNewHashtags runs one discovery pass: compute the unscraped set,
// scrape each hashtag and persist the results. A hashtag that keeps failing
// is recorded and skipped; it never aborts the pass.
func (e *Engine) ScrapeNewHashtags(ctx context.Context, maxHashtags int) (*types.DiscoveryResult, error) {
	unscraped, err := e.UnscrapedHashtags(ctx, maxHashtags)
	if err != nil {
		return nil, err
	}
	if len(unscraped) == 0 {
		logger.Infof(ctx, "no new hashtags to scrape")
		return &types.DiscoveryResult{Status: "success", Message: "No new hashtags found"}, nil
	}

	scraper, err := e.initScraper(ctx)
	if err != nil {
		return &types.DiscoveryResult{Status: "failed", Message: err.Error()}, nil
	}
	defer func() {
		if scraper != nil {
			scraper.Close()
		}
	}()

	result := &types.DiscoveryResult{Status: "success"}
	for i, candidate := range unscraped {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		tag := candidate.Hashtag
		logger.Infof(ctx, "scraping hashtag #%s (frequency: %d)", tag, candidate.Frequency)

		posts, scrapeErr := e.scrapeHashtag(ctx, &scraper, tag)
		if scrapeErr != nil {
			logger.Errorf(ctx, "error scraping #%s: %v", tag, scrapeErr)
			result.HashtagsFailed++
			result.Details = append(result.Details, types.DiscoveryDetail{Hashtag: tag, Status: "error", Error: scrapeErr.Error()})
			continue
		}
		if len(posts) == 0 {
			logger.Warnf(ctx, "no posts found for #%s", tag)
			result.HashtagsFailed++
			result.Details = append(result.Details, types.DiscoveryDetail{Hashtag: tag, Status: "no_posts"})
			continue
		}

		if _, err := e.repo.UpsertPosts(ctx, tag, e.opts.Platform, posts); err != nil {
			logger.Errorf(ctx, "failed to upload posts for #%s: %v", tag, err)
			result.HashtagsFailed++
			result.Details = append(result.Details, types.DiscoveryDetail{Hashtag: tag, Status: "upload_failed", Posts: len(posts)})
			continue
		}

		result.HashtagsScraped++
		result.TotalPosts += len(posts)
		result.Details = append(result.Details, types.DiscoveryDetail{Hashtag: tag, Status: "success", Posts: len(posts)})
		logger.Infof(ctx, "scraped and uploaded %d posts for #%s", len(posts), tag)

		if i < len(unscraped)-1 {
			e.sleep(interHashtagDelay)
		}
	}
	return result, nil
}

// initScraper builds a platform scraper, retrying with a fresh proxy on
// each failed attempt.
func (e *Engine) initScraper(ctx context.Context) (interfaces.PlatformScraper, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxInitRetries; attempt++ {
		if attempt > 1 {
			logger.Infof(ctx, "retry attempt %d/%d for scraper initialization", attempt, e.cfg.MaxInitRetries)
			e.sleep(initRetryDelay)
			e.rotateProxy(ctx)
		}
		scraper, err := e.factory(ctx, e.opts.Platform, e.currentProxy())
		if err == nil {
			return scraper, nil
		}
		lastErr = err
		logger.Warnf(ctx, "scraper init failed (attempt %d/%d): %v", attempt, e.cfg.MaxInitRetries, err)
	}
	return nil, fmt.Errorf("scraper initialization failed after %d attempts: %w", e.cfg.MaxInitRetries, lastErr)
}

// scrapeHashtag scrapes one hashtag. On TikTok, proxy-classified failures
// and empty results rotate to a new proxy and re-instantiate the scraper,
// up to the configured attempt cap; other errors abort the hashtag.
func (e *Engine) scrapeHashtag(ctx context.Context, scraper *interfaces.PlatformScraper, tag string) ([]types.ScrapedPost, error) {
	if e.opts.Platform != "tiktok" {
		return (*scraper).ScrapeHashtag(ctx, tag, e.opts.MaxPostsPerHashtag)
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxScrapeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		posts, err := (*scraper).ScrapeHashtag(ctx, tag, e.opts.MaxPostsPerHashtag)
		if err == nil && len(posts) > 0 {
			return posts, nil
		}

		if err != nil {
			if !e.isProxyFailure(err) {
				return nil, err
			}
			lastErr = err
			logger.Warnf(ctx, "scrape attempt %d/%d for #%s failed: %v", attempt, e.cfg.MaxScrapeRetries, tag, err)
		} else {
			// Empty results mean the page never loaded; treat like a dead proxy.
			lastErr = fmt.Errorf("scrape returned no posts")
			logger.Warnf(ctx, "scrape attempt %d/%d for #%s returned 0 results (proxy may have failed)", attempt, e.cfg.MaxScrapeRetries, tag)
		}

		if attempt == e.cfg.MaxScrapeRetries {
			break
		}
		(*scraper).Close()
		e.rotateProxy(ctx)
		fresh, initErr := e.factory(ctx, e.opts.Platform, e.currentProxy())
		if initErr != nil {
			return nil, fmt.Errorf("reinit scraper: %w", initErr)
		}
		*scraper = fresh
	}
	return nil, fmt.Errorf("scrape failed after %d attempts: %w", e.cfg.MaxScrapeRetries, lastErr)
}

// DiscoverAndScrapeRecursive repeats discovery passes until nothing new
// turns up or the iteration bound is hit. The bound is clamped to the hard
// limit.
func (e *Engine) DiscoverAndScrapeRecursive(ctx context.Context, maxIterations, maxHashtagsPerIteration int) (*types.RecursiveResult, error) {
	if maxIterations > maxIterationsLimit {
		logger.Warnf(ctx, "requested %d iterations exceeds limit of %d, capping", maxIterations, maxIterationsLimit)
		maxIterations = maxIterationsLimit
	}
	logger.Infof(ctx, "starting recursive hashtag discovery (platform: %s, max iterations: %d)", e.opts.Platform, maxIterations)

	all := &types.RecursiveResult{Status: "success"}
	for iteration := 1; iteration <= maxIterations; iteration++ {
		logger.Infof(ctx, "iteration %d/%d", iteration, maxIterations)

		res, err := e.ScrapeNewHashtags(ctx, maxHashtagsPerIteration)
		if err != nil {
			return all, err
		}
		all.Iterations = iteration
		all.HashtagsScraped += res.HashtagsScraped
		all.HashtagsFailed += res.HashtagsFailed
		all.TotalPosts += res.TotalPosts
		all.IterationDetail = append(all.IterationDetail, *res)

		if res.HashtagsScraped == 0 {
			logger.Infof(ctx, "no new hashtags found in iteration %d, stopping recursive discovery", iteration)
			break
		}
		if iteration < maxIterations {
			logger.Infof(ctx, "waiting %ds before next iteration", e.cfg.IterationDelay)
			e.sleep(time.Duration(e.cfg.IterationDelay) * time.Second)
		}
	}

	logger.Infof(ctx, "recursive discovery complete: %d iterations, %d hashtags scraped, %d posts",
		all.Iterations, all.HashtagsScraped, all.TotalPosts)
	return all, nil
}

// isProxyFailure classifies an error as proxy-caused by substring matching
// against the configured token list.
func (e *Engine) isProxyFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, token := range e.cfg.ProxyFailureTokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

func (e *Engine) currentProxy() string {
	if e.noProxy {
		return ""
	}
	return e.proxy
}

// rotateProxy swaps in a fresh proxy from the pool unless proxies are
// disabled.
func (e *Engine) rotateProxy(ctx context.Context) {
	if e.noProxy {
		return
	}
	next := e.pool.GetWorkingProxy()
	if next != "" {
		logger.Infof(ctx, "switched to proxy: %s", next)
	} else {
		logger.Warnf(ctx, "no more proxies available, using direct connection")
	}
	e.proxy = next
}
