// Package config loads pipeline configuration from the environment.
//
// Recognized variables mirror the deployment surface:
//
//	Database:   DATABASE_URL (or DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD)
//	Quality:    MIN_QUALITY_SCORE, MIN_SCORE, MIN_COMMENTS, MAX_AGE_HOURS,
//	            QUALITY_SCORE_WEIGHT, QUALITY_COMMENTS_WEIGHT,
//	            QUALITY_RECENCY_WEIGHT, QUALITY_FLAIR_BONUS,
//	            QUALITY_NSFW_PENALTY, QUALITY_REMOVED_PENALTY
//	Spike:      SPIKE_FACTOR_THRESHOLD
//	Fetch:      DEFAULT_FETCH_LIMIT, COMMENTS_FETCH_LIMIT, COMMENTS_DEPTH
//	Chunks:     CHUNK_MIN_CHARS, CHUNK_MAX_CHARS, CHUNK_OVERLAP_PERCENT
//	LLM:        LLM_ENABLED, LLM_PROVIDER, OLLAMA_HOST, OLLAMA_MODEL,
//	            OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
//	Raw JSON:   RAW_JSON_MAX_BYTES (informational; pruning is semantic)
//	Viral:      VIRAL_LIKES_FLOOR, VIRAL_COMMENTS_FLOOR, VIRAL_VIEWS_FLOOR,
//	            VIRAL_MIN_ENGAGEMENT, VIRAL_WINDOW_DAYS,
//	            VIRAL_MEDIAN_WINDOW_DAYS, VIRAL_MIN_POSTS, VIRAL_EXPIRY_DAYS
//	Broker:     REDIS_ADDR
//	Logging:    LOG_LEVEL, LOG_FORMAT
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// QualityConfig holds scoring weights and filter thresholds.
type QualityConfig struct {
	MinQualityScore float64
	MinScore        int
	MinComments     int
	MaxAgeHours     float64
	ScoreWeight     float64
	CommentsWeight  float64
	RecencyWeight   float64
	FlairBonus      float64
	NSFWPenalty     float64
	RemovedPenalty  float64
}

// ChunkConfig holds character-window chunking bounds.
type ChunkConfig struct {
	MinChars       int
	MaxChars       int
	OverlapPercent float64
}

// FetchConfig holds fetcher limits.
type FetchConfig struct {
	DefaultLimit  int
	CommentsLimit int
	CommentsDepth int
	UserAgent     string
}

// LLMConfig selects and parameterizes the strategy-card extractor backend.
type LLMConfig struct {
	Enabled       bool
	Provider      string
	OllamaHost    string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// ViralConfig holds outlier-detector floors and windows.
type ViralConfig struct {
	LikesFloor       int
	CommentsFloor    int
	ViewsFloor       int
	MinEngagement    int
	WindowDays       int
	MedianWindowDays int
	MinPosts         int
	ExpiryDays       int
}

// DiscoveryConfig holds hashtag-discovery bounds and the proxy-failure
// classifier token list.
type DiscoveryConfig struct {
	MaxPostsPerHashtag int
	MaxScrapeRetries   int
	MaxInitRetries     int
	ProxyFailureTokens []string
	IterationDelay     int // seconds between recursive iterations
	HashtagWindowDays  int
	ProxiesFile        string
}

// Config is the root configuration object.
type Config struct {
	DatabaseURL     string
	RedisAddr       string
	Quality         QualityConfig
	Chunk           ChunkConfig
	Fetch           FetchConfig
	LLM             LLMConfig
	Viral           ViralConfig
	Discovery       DiscoveryConfig
	SpikeFactor     float64
	RawJSONMaxBytes int
	LogLevel        string
	LogFormat       string
}

// defaultProxyFailureTokens matches error strings observed in the wild when a
// scrape fails because of the proxy rather than the target. Expect churn.
var defaultProxyFailureTokens = []string{
	"timeout", "timed_out", "err_timed_out", "err_aborted",
	"context was destroyed", "navigation", "net::err_",
	"connection refused", "connection reset", "proxy",
	"properties of null", "scrollheight", "typeerror",
	"something went wrong",
}

// Load reads configuration from the environment with defaults applied.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "project_monopoly")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "secret")

	v.SetDefault("REDIS_ADDR", "localhost:6379")

	v.SetDefault("MIN_QUALITY_SCORE", 0.3)
	v.SetDefault("MIN_SCORE", 5)
	v.SetDefault("MIN_COMMENTS", 2)
	v.SetDefault("MAX_AGE_HOURS", 168)
	v.SetDefault("QUALITY_SCORE_WEIGHT", 0.4)
	v.SetDefault("QUALITY_COMMENTS_WEIGHT", 0.3)
	v.SetDefault("QUALITY_RECENCY_WEIGHT", 0.2)
	v.SetDefault("QUALITY_FLAIR_BONUS", 0.1)
	v.SetDefault("QUALITY_NSFW_PENALTY", 0.5)
	v.SetDefault("QUALITY_REMOVED_PENALTY", 1.0)

	v.SetDefault("SPIKE_FACTOR_THRESHOLD", 2.0)

	v.SetDefault("DEFAULT_FETCH_LIMIT", 100)
	v.SetDefault("COMMENTS_FETCH_LIMIT", 50)
	v.SetDefault("COMMENTS_DEPTH", 3)
	v.SetDefault("REDDIT_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("CHUNK_MIN_CHARS", 1500)
	v.SetDefault("CHUNK_MAX_CHARS", 3000)
	v.SetDefault("CHUNK_OVERLAP_PERCENT", 0.12)

	v.SetDefault("LLM_ENABLED", false)
	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "qwen2.5:7b-instruct")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")

	v.SetDefault("RAW_JSON_MAX_BYTES", 102400)

	v.SetDefault("VIRAL_LIKES_FLOOR", 50)
	v.SetDefault("VIRAL_COMMENTS_FLOOR", 10)
	v.SetDefault("VIRAL_VIEWS_FLOOR", 1000)
	v.SetDefault("VIRAL_MIN_ENGAGEMENT", 100)
	v.SetDefault("VIRAL_WINDOW_DAYS", 3)
	v.SetDefault("VIRAL_MEDIAN_WINDOW_DAYS", 30)
	v.SetDefault("VIRAL_MIN_POSTS", 5)
	v.SetDefault("VIRAL_EXPIRY_DAYS", 7)

	v.SetDefault("HASHTAG_MAX_POSTS", 50)
	v.SetDefault("HASHTAG_MAX_SCRAPE_RETRIES", 25)
	v.SetDefault("HASHTAG_MAX_INIT_RETRIES", 3)
	v.SetDefault("HASHTAG_ITERATION_DELAY_SEC", 10)
	v.SetDefault("HASHTAG_WINDOW_DAYS", 28)
	v.SetDefault("VERIFIED_PROXIES_FILE", "verified_proxies.json")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	databaseURL := v.GetString("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
			v.GetString("DB_USER"), v.GetString("DB_PASSWORD"),
			v.GetString("DB_HOST"), v.GetInt("DB_PORT"), v.GetString("DB_NAME"))
	}

	tokens := v.GetStringSlice("PROXY_FAILURE_TOKENS")
	if len(tokens) == 0 {
		tokens = defaultProxyFailureTokens
	}

	cfg := &Config{
		DatabaseURL: databaseURL,
		RedisAddr:   v.GetString("REDIS_ADDR"),
		Quality: QualityConfig{
			MinQualityScore: v.GetFloat64("MIN_QUALITY_SCORE"),
			MinScore:        v.GetInt("MIN_SCORE"),
			MinComments:     v.GetInt("MIN_COMMENTS"),
			MaxAgeHours:     v.GetFloat64("MAX_AGE_HOURS"),
			ScoreWeight:     v.GetFloat64("QUALITY_SCORE_WEIGHT"),
			CommentsWeight:  v.GetFloat64("QUALITY_COMMENTS_WEIGHT"),
			RecencyWeight:   v.GetFloat64("QUALITY_RECENCY_WEIGHT"),
			FlairBonus:      v.GetFloat64("QUALITY_FLAIR_BONUS"),
			NSFWPenalty:     v.GetFloat64("QUALITY_NSFW_PENALTY"),
			RemovedPenalty:  v.GetFloat64("QUALITY_REMOVED_PENALTY"),
		},
		Chunk: ChunkConfig{
			MinChars:       v.GetInt("CHUNK_MIN_CHARS"),
			MaxChars:       v.GetInt("CHUNK_MAX_CHARS"),
			OverlapPercent: v.GetFloat64("CHUNK_OVERLAP_PERCENT"),
		},
		Fetch: FetchConfig{
			DefaultLimit:  v.GetInt("DEFAULT_FETCH_LIMIT"),
			CommentsLimit: v.GetInt("COMMENTS_FETCH_LIMIT"),
			CommentsDepth: v.GetInt("COMMENTS_DEPTH"),
			UserAgent:     v.GetString("REDDIT_USER_AGENT"),
		},
		LLM: LLMConfig{
			Enabled:       v.GetBool("LLM_ENABLED"),
			Provider:      v.GetString("LLM_PROVIDER"),
			OllamaHost:    v.GetString("OLLAMA_HOST"),
			OllamaModel:   v.GetString("OLLAMA_MODEL"),
			OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
			OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
			OpenAIModel:   v.GetString("OPENAI_MODEL"),
		},
		Viral: ViralConfig{
			LikesFloor:       v.GetInt("VIRAL_LIKES_FLOOR"),
			CommentsFloor:    v.GetInt("VIRAL_COMMENTS_FLOOR"),
			ViewsFloor:       v.GetInt("VIRAL_VIEWS_FLOOR"),
			MinEngagement:    v.GetInt("VIRAL_MIN_ENGAGEMENT"),
			WindowDays:       v.GetInt("VIRAL_WINDOW_DAYS"),
			MedianWindowDays: v.GetInt("VIRAL_MEDIAN_WINDOW_DAYS"),
			MinPosts:         v.GetInt("VIRAL_MIN_POSTS"),
			ExpiryDays:       v.GetInt("VIRAL_EXPIRY_DAYS"),
		},
		Discovery: DiscoveryConfig{
			MaxPostsPerHashtag: v.GetInt("HASHTAG_MAX_POSTS"),
			MaxScrapeRetries:   v.GetInt("HASHTAG_MAX_SCRAPE_RETRIES"),
			MaxInitRetries:     v.GetInt("HASHTAG_MAX_INIT_RETRIES"),
			ProxyFailureTokens: tokens,
			IterationDelay:     v.GetInt("HASHTAG_ITERATION_DELAY_SEC"),
			HashtagWindowDays:  v.GetInt("HASHTAG_WINDOW_DAYS"),
			ProxiesFile:        v.GetString("VERIFIED_PROXIES_FILE"),
		},
		SpikeFactor:     v.GetFloat64("SPIKE_FACTOR_THRESHOLD"),
		RawJSONMaxBytes: v.GetInt("RAW_JSON_MAX_BYTES"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
	}
	return cfg, nil
}

// Summary returns a sanitized configuration map suitable for logging or the
// `config` CLI command. Credentials are masked.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"database": map[string]interface{}{
			"url": maskDSN(c.DatabaseURL),
		},
		"quality": map[string]interface{}{
			"min_quality_score": c.Quality.MinQualityScore,
			"min_score":         c.Quality.MinScore,
			"min_comments":      c.Quality.MinComments,
			"max_age_hours":     c.Quality.MaxAgeHours,
		},
		"chunks": map[string]interface{}{
			"min_chars":       c.Chunk.MinChars,
			"max_chars":       c.Chunk.MaxChars,
			"overlap_percent": c.Chunk.OverlapPercent,
		},
		"llm": map[string]interface{}{
			"enabled":  c.LLM.Enabled,
			"provider": llmProviderSummary(c.LLM),
		},
		"viral": map[string]interface{}{
			"likes_floor":        c.Viral.LikesFloor,
			"comments_floor":     c.Viral.CommentsFloor,
			"views_floor":        c.Viral.ViewsFloor,
			"min_engagement":     c.Viral.MinEngagement,
			"window_days":        c.Viral.WindowDays,
			"median_window_days": c.Viral.MedianWindowDays,
			"expiry_days":        c.Viral.ExpiryDays,
		},
		"spike_factor_threshold": c.SpikeFactor,
		"raw_json_max_bytes":     c.RawJSONMaxBytes,
	}
}

func llmProviderSummary(l LLMConfig) interface{} {
	if !l.Enabled {
		return nil
	}
	return l.Provider
}

// maskDSN hides the password portion of a connection string.
func maskDSN(dsn string) string {
	masked := []rune(dsn)
	start, end := -1, -1
	for i := 0; i < len(masked); i++ {
		if masked[i] == ':' && start == -1 && i+2 < len(masked) && masked[i+1] == '/' {
			// scheme separator, find credentials after "//"
			for j := i + 3; j < len(masked); j++ {
				if masked[j] == ':' {
					start = j + 1
				}
				if masked[j] == '@' {
					end = j
					break
				}
				if masked[j] == '/' {
					break
				}
			}
			break
		}
	}
	if start == -1 || end == -1 || start >= end {
		return dsn
	}
	return string(masked[:start]) + "****" + string(masked[end:])
}
