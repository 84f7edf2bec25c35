package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

type hashtagPostRepository struct {
	db *gorm.DB
}

var (
	captionSpaceRE = regexp.MustCompile(`\s+`)
	captionCharRE  = regexp.MustCompile(`[^\w\s#@]`)
)

// NormalizeCaption lowercases a caption, collapses whitespace and strips
// everything but word characters, spaces, # and @. The normalized form
// feeds the secondary dedup hash.
func NormalizeCaption(caption string) string {
	if caption == "" {
		return ""
	}
	normalized := captionSpaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(caption)), " ")
	return captionCharRE.ReplaceAllString(normalized, "")
}

// CaptionHash returns the SHA-256 of the normalized caption.
func CaptionHash(caption string) string {
	sum := sha256.Sum256([]byte(NormalizeCaption(caption)))
	return hex.EncodeToString(sum[:])
}

// UpsertPosts stores scraped posts for a hashtag, keyed by
// (platform, post_id). Posts without a post id are skipped. Returns the
// number of rows written.
func (r *hashtagPostRepository) UpsertPosts(ctx context.Context, hashtag, platform string, posts []types.ScrapedPost) (int, error) {
	stored := 0
	for _, post := range posts {
		if post.PostID == "" {
			continue
		}

		media, err := types.MarshalToJSON(map[string]interface{}{
			"urls": []string{post.MediaURL},
			"type": mediaType(post.MediaURL),
		})
		if err != nil {
			return stored, err
		}
		tags, err := types.MarshalToJSON(post.Hashtags)
		if err != nil {
			return stored, err
		}

		res := r.db.WithContext(ctx).Exec(`
			INSERT INTO hashtag_posts (
				hashtag, platform, post_id, username, content, media,
				posted_at, likes, comments_count, hashtags, scraped_at, caption_hash
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (platform, post_id) DO UPDATE SET
				hashtag = EXCLUDED.hashtag,
				username = EXCLUDED.username,
				content = EXCLUDED.content,
				media = EXCLUDED.media,
				posted_at = EXCLUDED.posted_at,
				likes = EXCLUDED.likes,
				comments_count = EXCLUDED.comments_count,
				hashtags = EXCLUDED.hashtags,
				scraped_at = EXCLUDED.scraped_at
		`, hashtag, platform, post.PostID, post.Username, post.Caption, media,
			post.PostedAt.UTC(), post.Likes, post.Comments, tags,
			time.Now().UTC(), CaptionHash(post.Caption))
		if res.Error != nil {
			return stored, res.Error
		}
		if res.RowsAffected > 0 {
			stored++
		}
	}
	return stored, nil
}

func mediaType(url string) string {
	if url == "" {
		return "unknown"
	}
	return "image"
}

// CompetitorHashtags returns hashtags appearing in competitor posts over the
// window with their frequencies, most frequent first. userID 0 widens the
// query to all tracked competitors.
func (r *hashtagPostRepository) CompetitorHashtags(ctx context.Context, userID int64, groupID *int64, platform string, windowDays, limit int) ([]types.HashtagCandidate, error) {
	var rows []types.HashtagCandidate
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	if userID != 0 {
		err := r.db.WithContext(ctx).Raw(`
			SELECT hashtag, COUNT(*)::bigint AS frequency
			FROM (
				SELECT UNNEST(cp.hashtags) AS hashtag
				FROM competitor_posts cp
				JOIN competitors c ON c.id = cp.competitor_id
				JOIN user_competitors uc ON uc.competitor_id = c.id
				WHERE uc.user_id = ?
				  AND (uc.group_id = ? OR uc.group_id IS NULL)
				  AND cp.posted_at >= ?
				  AND cp.platform = ?
				  AND cp.hashtags IS NOT NULL
				  AND array_length(cp.hashtags, 1) > 0
			) AS tags
			WHERE LENGTH(hashtag) > 2
			GROUP BY hashtag
			ORDER BY frequency DESC
			LIMIT ?
		`, userID, groupID, cutoff, platform, limit).Scan(&rows).Error
		return rows, err
	}

	err := r.db.WithContext(ctx).Raw(`
		SELECT hashtag, COUNT(*)::bigint AS frequency
		FROM (
			SELECT UNNEST(cp.hashtags) AS hashtag
			FROM competitor_posts cp
			WHERE cp.posted_at >= ?
			  AND cp.platform = ?
			  AND cp.hashtags IS NOT NULL
			  AND array_length(cp.hashtags, 1) > 0
		) AS tags
		WHERE LENGTH(hashtag) > 2
		GROUP BY hashtag
		ORDER BY frequency DESC
		LIMIT ?
	`, cutoff, platform, limit).Scan(&rows).Error
	return rows, err
}

// HashtagPostHashtags returns hashtags appearing in already-scraped hashtag
// posts over the window; this is what makes discovery recursive.
func (r *hashtagPostRepository) HashtagPostHashtags(ctx context.Context, platform string, windowDays, limit int) ([]types.HashtagCandidate, error) {
	var rows []types.HashtagCandidate
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	err := r.db.WithContext(ctx).Raw(`
		SELECT hashtag, COUNT(*)::bigint AS frequency
		FROM (
			SELECT jsonb_array_elements_text(hp.hashtags) AS hashtag
			FROM hashtag_posts hp
			WHERE hp.posted_at >= ?
			  AND hp.platform = ?
			  AND hp.hashtags IS NOT NULL
			  AND jsonb_array_length(hp.hashtags) > 0
		) AS tags
		WHERE LENGTH(hashtag) > 2
		GROUP BY hashtag
		ORDER BY frequency DESC
		LIMIT ?
	`, cutoff, platform, limit).Scan(&rows).Error
	return rows, err
}

// ScrapedHashtags returns the case-folded set of hashtags already scraped
// for a platform.
func (r *hashtagPostRepository) ScrapedHashtags(ctx context.Context, platform string) (map[string]struct{}, error) {
	var tags []string
	err := r.db.WithContext(ctx).Model(&types.HashtagPost{}).
		Distinct("hashtag").
		Where("platform = ?", platform).
		Pluck("hashtag", &tags).Error
	if err != nil {
		return nil, err
	}
	scraped := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		scraped[strings.ToLower(t)] = struct{}{}
	}
	return scraped, nil
}
