// Package aggregator assembles the tenant-scoped context handed to the AI
// content generator. Every query is capped so the prompt stays inside its
// token budget. Document chunks are scoped to the group; every other query
// except the global-niche viral lookup is scoped to (user, group).
package aggregator

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// Data caps per context field.
const (
	capDocChunks     = 3
	capHooks         = 3
	capHashtags      = 5
	capStrategyCards = 2
	capTrends        = 3
	capViralHooks    = 5
)

const (
	hookWindowDays  = 14
	dowWindowDays   = 28
	trendWindowDays = 7

	hookLineChars = 150

	minCardConfidence  = 0.7
	minViralMultiplier = 10
)

var dowNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Aggregator reads the enrichment tables.
type Aggregator struct {
	db *gorm.DB
}

// New builds an aggregator.
func New(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Aggregate fetches all available context for content generation.
func (a *Aggregator) Aggregate(ctx context.Context, userID, groupID int64, platform string) (*types.ContentContext, error) {
	cc := &types.ContentContext{BestPostingDay: "Wednesday"}

	a.fetchGameContext(ctx, userID, groupID, cc)
	a.fetchDocChunks(ctx, groupID, platform, cc)
	a.fetchCompetitorData(ctx, userID, groupID, cc)
	a.fetchStrategyCards(ctx, userID, groupID, cc)
	a.fetchTrendingTopics(ctx, userID, groupID, cc)
	a.fetchViralHooks(ctx, userID, groupID, platform, cc)

	cc.HasData = cc.GameTitle != ""
	cc.Confidence = confidenceLabel(cc)

	logger.Infof(ctx, "context aggregated: game=%q, docs=%d, hooks=%d, viral=%d, cards=%d, confidence=%s",
		cc.GameTitle, len(cc.DocChunks), len(cc.TopHooks), len(cc.ViralHooks), len(cc.StrategyCards), cc.Confidence)
	return cc, nil
}

func (a *Aggregator) fetchGameContext(ctx context.Context, userID, groupID int64, cc *types.ContentContext) {
	var row struct {
		GameTitle        string
		PrimaryGenre     string
		Tone             string
		IntendedAudience string
		KeyMechanics     string
	}
	err := a.db.WithContext(ctx).Raw(`
		SELECT game_title, primary_genre, tone, intended_audience, key_mechanics
		FROM game_contexts
		WHERE user_id = ? AND group_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, groupID).Scan(&row).Error
	if err != nil {
		logger.Warnf(ctx, "game context query failed: %v", err)
		return
	}
	if row.GameTitle == "" && row.PrimaryGenre == "" {
		logger.Warnf(ctx, "no game context for user=%d group=%d", userID, groupID)
		return
	}
	cc.GameTitle = row.GameTitle
	cc.Genre = row.PrimaryGenre
	cc.Tone = row.Tone
	cc.Audience = row.IntendedAudience
	cc.KeyMechanics = row.KeyMechanics
}

// fetchDocChunks ranks workshop chunks by full-text relevance against a
// platform-flavored marketing query.
func (a *Aggregator) fetchDocChunks(ctx context.Context, groupID int64, platform string, cc *types.ContentContext) {
	searchTerms := platform + " marketing social media content"
	var chunks []string
	err := a.db.WithContext(ctx).Raw(`
		SELECT c.content
		FROM workshop_chunks c
		JOIN workshop_documents d ON c.document_id = d.id
		WHERE d.group_id = ? AND d.status = 'ready'
		ORDER BY ts_rank(c.tsv, plainto_tsquery('english', ?)) DESC
		LIMIT ?
	`, groupID, searchTerms, capDocChunks).Scan(&chunks).Error
	if err != nil {
		logger.Warnf(ctx, "doc chunk query failed: %v", err)
		return
	}
	for _, c := range chunks {
		if c != "" {
			cc.DocChunks = append(cc.DocChunks, c)
		}
	}
}

func (a *Aggregator) fetchCompetitorData(ctx context.Context, userID, groupID int64, cc *types.ContentContext) {
	var hookRows []struct {
		Content string
		Handle  string
		Likes   *int64
	}
	err := a.db.WithContext(ctx).Raw(`
		SELECT cp.content, cpf.handle, (cp.engagement->>'likes')::int AS likes
		FROM competitor_posts cp
		JOIN competitor_profiles cpf ON cp.profile_id = cpf.id
		JOIN user_competitors uc ON cpf.competitor_id = uc.competitor_id
		WHERE uc.user_id = ?
		  AND uc.group_id = ?
		  AND cp.posted_at > ?
		  AND cp.content IS NOT NULL
		ORDER BY likes DESC NULLS LAST
		LIMIT ?
	`, userID, groupID, daysAgo(hookWindowDays), capHooks).Scan(&hookRows).Error
	if err != nil {
		logger.Warnf(ctx, "competitor hooks query failed: %v", err)
		return
	}

	handles := make(map[string]struct{})
	var totalLikes int64
	for _, row := range hookRows {
		if row.Content != "" {
			cc.TopHooks = append(cc.TopHooks, firstLine(row.Content))
		}
		if row.Handle != "" {
			handle := strings.ToLower(row.Handle)
			if _, seen := handles[handle]; !seen {
				handles[handle] = struct{}{}
				cc.CompetitorHandles = append(cc.CompetitorHandles, handle)
			}
		}
		if row.Likes != nil {
			totalLikes += *row.Likes
		}
	}
	if len(hookRows) > 0 {
		cc.AvgEngagement = float64(totalLikes) / float64(len(hookRows))
	}

	var tagRows []struct {
		Tag  string
		Freq int64
	}
	err = a.db.WithContext(ctx).Raw(`
		SELECT unnest(cp.hashtags) AS tag, COUNT(*) AS freq
		FROM competitor_posts cp
		JOIN competitor_profiles cpf ON cp.profile_id = cpf.id
		JOIN user_competitors uc ON cpf.competitor_id = uc.competitor_id
		WHERE uc.user_id = ?
		  AND uc.group_id = ?
		  AND cp.posted_at > ?
		GROUP BY tag
		ORDER BY freq DESC
		LIMIT ?
	`, userID, groupID, daysAgo(hookWindowDays), capHashtags).Scan(&tagRows).Error
	if err != nil {
		logger.Warnf(ctx, "competitor hashtags query failed: %v", err)
	} else {
		for _, row := range tagRows {
			if row.Tag != "" {
				cc.TopHashtags = append(cc.TopHashtags, row.Tag)
			}
		}
	}

	var dowRow struct {
		Dow      *int
		AvgLikes *float64
	}
	err = a.db.WithContext(ctx).Raw(`
		SELECT EXTRACT(DOW FROM cp.posted_at)::int AS dow,
		       AVG((cp.engagement->>'likes')::int) AS avg_likes
		FROM competitor_posts cp
		JOIN competitor_profiles cpf ON cp.profile_id = cpf.id
		JOIN user_competitors uc ON cpf.competitor_id = uc.competitor_id
		WHERE uc.user_id = ?
		  AND uc.group_id = ?
		  AND cp.posted_at > ?
		GROUP BY dow
		ORDER BY avg_likes DESC NULLS LAST
		LIMIT 1
	`, userID, groupID, daysAgo(dowWindowDays)).Scan(&dowRow).Error
	if err != nil {
		logger.Warnf(ctx, "best posting day query failed: %v", err)
		return
	}
	if dowRow.Dow != nil && *dowRow.Dow >= 0 && *dowRow.Dow < len(dowNames) {
		cc.BestPostingDay = dowNames[*dowRow.Dow]
	}
}

func (a *Aggregator) fetchStrategyCards(ctx context.Context, userID, groupID int64, cc *types.ContentContext) {
	var rows []struct {
		Tactic     string
		Steps      types.JSON
		Confidence float64
	}
	err := a.db.WithContext(ctx).Raw(`
		SELECT sc.tactic, sc.steps, sc.confidence
		FROM strategy_cards sc
		JOIN reddit_items ri ON sc.item_id = ri.id
		JOIN reddit_sources rs ON ri.source_id = rs.id
		WHERE rs.user_id = ?
		  AND rs.group_id = ?
		  AND sc.confidence >= ?
		ORDER BY sc.confidence DESC, sc.created_at DESC
		LIMIT ?
	`, userID, groupID, minCardConfidence, capStrategyCards).Scan(&rows).Error
	if err != nil {
		logger.Warnf(ctx, "strategy cards query failed: %v", err)
		return
	}
	for _, row := range rows {
		if row.Tactic == "" {
			continue
		}
		cc.StrategyCards = append(cc.StrategyCards, types.CardSummary{
			Tactic:     row.Tactic,
			Steps:      row.Steps,
			Confidence: row.Confidence,
		})
	}
}

func (a *Aggregator) fetchTrendingTopics(ctx context.Context, userID, groupID int64, cc *types.ContentContext) {
	var titles []string
	err := a.db.WithContext(ctx).Raw(`
		SELECT ri.title
		FROM reddit_items ri
		JOIN reddit_sources rs ON ri.source_id = rs.id
		WHERE rs.user_id = ?
		  AND rs.group_id = ?
		  AND ri.created_utc > ?
		ORDER BY ri.score DESC
		LIMIT ?
	`, userID, groupID, daysAgo(trendWindowDays), capTrends).Scan(&titles).Error
	if err != nil {
		logger.Warnf(ctx, "trending topics query failed: %v", err)
		return
	}
	for _, title := range titles {
		if title != "" {
			cc.TrendingTopics = append(cc.TrendingTopics, title)
		}
	}
}

// fetchViralHooks resolves viral hooks with the global-niche path first:
// any tenant sharing this tenant's primary genre contributes its tracked
// competitors' outliers. Only when the genre search yields nothing does the
// strictly tenant-scoped fallback run. A missing viral_outliers table
// degrades to no hooks.
func (a *Aggregator) fetchViralHooks(ctx context.Context, userID, groupID int64, platform string, cc *types.ContentContext) {
	var tableExists bool
	err := a.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'viral_outliers'
		)
	`).Scan(&tableExists).Error
	if err != nil {
		logger.Warnf(ctx, "could not fetch viral hooks: %v", err)
		return
	}
	if !tableExists {
		logger.Debugf(ctx, "viral_outliers table not found, skipping viral hooks")
		return
	}

	type hookRow struct {
		Hook             string
		Username         string
		Platform         string
		Multiplier       int
		ActualEngagement int64
		SupportCount     int
	}

	if cc.Genre != "" {
		logger.Infof(ctx, "attempting global niche search for genre %q", cc.Genre)
		var rows []hookRow
		err := a.db.WithContext(ctx).Raw(`
			WITH niche_groups AS (
				SELECT group_id
				FROM game_contexts
				WHERE primary_genre ILIKE ?
			),
			niche_competitors AS (
				SELECT DISTINCT uc.competitor_id
				FROM user_competitors uc
				JOIN niche_groups ng ON uc.group_id = ng.group_id
			)
			SELECT vo.hook, vo.username, vo.platform, vo.multiplier,
			       vo.actual_engagement, vo.support_count
			FROM viral_outliers vo
			JOIN competitor_profiles cp ON vo.username = cp.handle AND vo.platform = cp.platform
			JOIN niche_competitors nc ON cp.competitor_id = nc.competitor_id
			WHERE vo.platform = ?
			  AND vo.expires_at > ?
			  AND vo.multiplier >= ?
			ORDER BY vo.multiplier DESC, vo.actual_engagement DESC
			LIMIT ?
		`, "%"+cc.Genre+"%", platform, time.Now().UTC(), minViralMultiplier, capViralHooks).Scan(&rows).Error
		if err != nil {
			logger.Warnf(ctx, "global niche viral query failed: %v", err)
		} else if len(rows) > 0 {
			logger.Infof(ctx, "found %d global niche viral hooks", len(rows))
			for _, r := range rows {
				cc.ViralHooks = append(cc.ViralHooks, types.ViralHook{
					Hook: firstChars(r.Hook, hookStoreChars), Username: usernameOr(r.Username),
					Platform: r.Platform, Multiplier: r.Multiplier,
					Engagement: r.ActualEngagement, SupportCount: r.SupportCount,
				})
			}
			return
		} else {
			logger.Infof(ctx, "no global niche data found, falling back to local")
		}
	}

	var rows []hookRow
	err = a.db.WithContext(ctx).Raw(`
		SELECT vo.hook, vo.username, vo.platform, vo.multiplier,
		       vo.actual_engagement, vo.support_count
		FROM viral_outliers vo
		JOIN competitor_profiles cp ON vo.username = cp.handle AND vo.platform = cp.platform
		JOIN user_competitors uc ON cp.competitor_id = uc.competitor_id
		WHERE uc.user_id = ?
		  AND uc.group_id = ?
		  AND vo.platform = ?
		  AND vo.expires_at > ?
		  AND vo.multiplier >= ?
		ORDER BY vo.multiplier DESC, vo.actual_engagement DESC
		LIMIT ?
	`, userID, groupID, platform, time.Now().UTC(), minViralMultiplier, capViralHooks).Scan(&rows).Error
	if err != nil {
		logger.Warnf(ctx, "could not fetch viral hooks: %v", err)
		return
	}
	for _, r := range rows {
		cc.ViralHooks = append(cc.ViralHooks, types.ViralHook{
			Hook: firstChars(r.Hook, hookStoreChars), Username: usernameOr(r.Username),
			Platform: r.Platform, Multiplier: r.Multiplier,
			Engagement: r.ActualEngagement, SupportCount: r.SupportCount,
		})
	}
}

const hookStoreChars = 280

// confidenceLabel scores the assembled context: game title 2, doc chunks 1,
// two or more hooks 2, strategy cards 1, viral hooks 2.
func confidenceLabel(cc *types.ContentContext) string {
	score := 0
	if cc.GameTitle != "" {
		score += 2
	}
	if len(cc.DocChunks) > 0 {
		score++
	}
	if len(cc.TopHooks) >= 2 {
		score += 2
	}
	if len(cc.StrategyCards) > 0 {
		score++
	}
	if len(cc.ViralHooks) > 0 {
		score += 2
	}
	switch {
	case score >= 5:
		return "high"
	case score >= 3:
		return "medium"
	default:
		return "low"
	}
}

func firstLine(content string) string {
	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	return firstChars(line, hookLineChars)
}

func firstChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func usernameOr(username string) string {
	if username == "" {
		return "unknown"
	}
	return username
}

func daysAgo(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}
