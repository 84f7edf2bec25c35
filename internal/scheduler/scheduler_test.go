package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/chunker"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/extractor"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/quality"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// fakeStore is an in-memory ListenerStore.
type fakeStore struct {
	sources  []*types.Source
	states   map[int64]*types.ListenerState
	items    map[string]*types.Item // by external id
	comments map[string]*types.Comment
	chunks   map[string]*types.Chunk // by hash
	cards    []*types.StrategyCard
	alerts   []*types.Alert

	nextItemID    int64
	nextCommentID int64
	nextChunkID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:   map[int64]*types.ListenerState{},
		items:    map[string]*types.Item{},
		comments: map[string]*types.Comment{},
		chunks:   map[string]*types.Chunk{},
	}
}

func (f *fakeStore) CreateSource(ctx context.Context, src *types.Source) (*types.Source, error) {
	src.ID = int64(len(f.sources) + 1)
	f.sources = append(f.sources, src)
	return src, nil
}

func (f *fakeStore) ListEnabledSources(ctx context.Context, userID int64) ([]*types.Source, error) {
	var out []*types.Source
	for _, s := range f.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSource(ctx context.Context, id int64) (*types.Source, error) {
	for _, s := range f.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, assert.AnError
}

func (f *fakeStore) DeleteSource(ctx context.Context, id, userID int64) (bool, error) {
	return false, nil
}

func (f *fakeStore) GetState(ctx context.Context, sourceID int64) (*types.ListenerState, error) {
	return f.states[sourceID], nil
}

func (f *fakeStore) AdvanceState(ctx context.Context, sourceID int64, lastSeen time.Time) error {
	st := f.states[sourceID]
	if st == nil {
		st = &types.ListenerState{SourceID: sourceID}
		f.states[sourceID] = st
	}
	if lastSeen.After(st.LastSeenCreatedUTC) {
		st.LastSeenCreatedUTC = lastSeen
	}
	st.LastRunAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) UpsertItem(ctx context.Context, item *types.Item) (int64, error) {
	if existing, ok := f.items[item.ExternalID]; ok {
		existing.Score = item.Score
		existing.NumComments = item.NumComments
		existing.QualityScore = item.QualityScore
		existing.Removed = item.Removed
		return existing.ID, nil
	}
	f.nextItemID++
	item.ID = f.nextItemID
	f.items[item.ExternalID] = item
	return item.ID, nil
}

func (f *fakeStore) CountItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time) (int64, error) {
	var count int64
	for _, it := range f.items {
		if it.SourceID == sourceID && !it.CreatedUTC.Before(start) && it.CreatedUTC.Before(end) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) TopItemsInWindow(ctx context.Context, sourceID int64, start, end time.Time, limit int) ([]string, error) {
	var ids []string
	for _, it := range f.items {
		if it.SourceID == sourceID && !it.CreatedUTC.Before(start) && it.CreatedUTC.Before(end) {
			ids = append(ids, it.ExternalID)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) ItemsWithoutCards(ctx context.Context, minQuality float64, limit int) ([]*types.Item, error) {
	carded := map[int64]bool{}
	for _, c := range f.cards {
		carded[c.ItemID] = true
	}
	var out []*types.Item
	for _, it := range f.items {
		if !carded[it.ID] && it.QualityScore >= minQuality && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertComment(ctx context.Context, c *types.Comment) (int64, error) {
	if existing, ok := f.comments[c.ExternalID]; ok {
		return existing.ID, nil
	}
	f.nextCommentID++
	c.ID = f.nextCommentID
	f.comments[c.ExternalID] = c
	return c.ID, nil
}

func (f *fakeStore) InsertChunk(ctx context.Context, ch *types.Chunk) (int64, error) {
	if _, ok := f.chunks[ch.Hash]; ok {
		return 0, nil
	}
	f.nextChunkID++
	ch.ID = f.nextChunkID
	f.chunks[ch.Hash] = ch
	return ch.ID, nil
}

func (f *fakeStore) InsertCard(ctx context.Context, card *types.StrategyCard) (int64, error) {
	for _, c := range f.cards {
		if c.ItemID == card.ItemID {
			return 0, nil
		}
	}
	card.ID = int64(len(f.cards) + 1)
	f.cards = append(f.cards, card)
	return card.ID, nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, alert *types.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

// fakeFetcher serves canned posts and comments, honoring the watermark.
type fakeFetcher struct {
	posts    []types.RedditPost
	comments []types.RedditComment
}

func (f *fakeFetcher) FetchSubredditNew(ctx context.Context, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error {
	for _, p := range f.posts {
		if lastSeen != nil && !p.CreatedUTC.After(*lastSeen) {
			return nil
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) FetchSearch(ctx context.Context, query, subreddit string, limit int, lastSeen *time.Time, fn func(types.RedditPost) error) error {
	return f.FetchSubredditNew(ctx, subreddit, limit, lastSeen, fn)
}

func (f *fakeFetcher) FetchComments(ctx context.Context, submissionID string, limit, depth int, fn func(types.RedditComment) error) error {
	for _, c := range f.comments {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

type fakeExtractor struct {
	card *extractor.Card
}

func (f *fakeExtractor) Extract(ctx context.Context, title, body string, topComments []string, permalink string) *extractor.Card {
	if f.card == nil {
		return nil
	}
	c := *f.card
	c.Evidence.Permalink = permalink
	return &c
}

func testConfig() *config.Config {
	return &config.Config{
		Quality: config.QualityConfig{
			MinQualityScore: 0.3, MinScore: 5, MinComments: 2, MaxAgeHours: 168,
			ScoreWeight: 0.4, CommentsWeight: 0.3, RecencyWeight: 0.2,
			FlairBonus: 0.1, NSFWPenalty: 0.5, RemovedPenalty: 1.0,
		},
		Chunk:       config.ChunkConfig{MinChars: 500, MaxChars: 600, OverlapPercent: 0.12},
		Fetch:       config.FetchConfig{DefaultLimit: 100, CommentsLimit: 50, CommentsDepth: 3},
		SpikeFactor: 2.0,
	}
}

func newTestScheduler(store *fakeStore, f *fakeFetcher, ex CardExtractor, now time.Time) *Scheduler {
	cfg := testConfig()
	s := New(
		store,
		f,
		quality.NewScorerAt(cfg.Quality, func() time.Time { return now }),
		chunker.New(cfg.Chunk),
		ex,
		cfg,
	)
	s.now = func() time.Time { return now }
	return s
}

func basicPost(id string, created time.Time) types.RedditPost {
	return types.RedditPost{
		ExternalID:  "t3_" + id,
		ExternalURL: "https://reddit.com/r/gamedev/comments/" + id + "/",
		Subreddit:   "gamedev",
		Title:       "Launch tips",
		Body:        strings.Repeat("Use wishlists. Post early and often. ", 20),
		Author:      "u1",
		Score:       50,
		NumComments: 12,
		CreatedUTC:  created,
		RawJSON:     map[string]interface{}{"id": id},
	}
}

func TestProcessSourceBasicIngest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	fetch := &fakeFetcher{posts: []types.RedditPost{basicPost("a", now.Add(-time.Hour))}}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	count, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	item := store.items["t3_a"]
	require.NotNil(t, item)
	assert.InDelta(t, 2.5410, item.QualityScore, 0.001)

	// body is long enough for exactly one chunk under the test bounds
	assert.Len(t, store.chunks, 1)
	for _, ch := range store.chunks {
		assert.Contains(t, ch.Text, chunker.StartSentinel)
	}

	st := store.states[src.ID]
	require.NotNil(t, st)
	assert.Equal(t, now.Add(-time.Hour), st.LastSeenCreatedUTC)
}

func TestProcessSourceFilteredItemStillAdvancesState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	low := basicPost("low", now.Add(-time.Hour))
	low.Score = 1 // below MinScore
	fetch := &fakeFetcher{posts: []types.RedditPost{low}}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	count, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, store.items)
	require.NotNil(t, store.states[src.ID])
	assert.Equal(t, now.Add(-time.Hour), store.states[src.ID].LastSeenCreatedUTC)
}

func TestProcessSourceHighQualityFetchesComments(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	longBody := strings.Repeat("solid marketing advice in this comment thread. ", 12)
	fetch := &fakeFetcher{
		posts: []types.RedditPost{basicPost("hq", now.Add(-time.Hour))},
		comments: []types.RedditComment{
			{ExternalID: "t1_c1", Body: longBody, Author: "c1", Score: 9, CreatedUTC: now.Add(-30 * time.Minute)},
			{ExternalID: "t1_c2", Body: "[deleted]", Author: "c2", Score: 1, CreatedUTC: now.Add(-20 * time.Minute)},
		},
	}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	_, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)

	// live comment stored, deleted one skipped
	assert.Contains(t, store.comments, "t1_c1")
	assert.NotContains(t, store.comments, "t1_c2")

	// long comment produced its own chunk alongside the item chunk
	commentChunks := 0
	for _, ch := range store.chunks {
		if ch.CommentID != nil {
			commentChunks++
			assert.Contains(t, ch.Text, "Comment on:")
		}
	}
	assert.Equal(t, 1, commentChunks)
}

func TestProcessSourceExtractsCard(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	fetch := &fakeFetcher{posts: []types.RedditPost{basicPost("c", now.Add(-time.Hour))}}
	ex := &fakeExtractor{card: &extractor.Card{
		PlatformTargets: []string{"tiktok"},
		Tactic:          "Post devlogs",
		Confidence:      0.8,
	}}
	s := newTestScheduler(store, fetch, ex, now)

	_, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, store.cards, 1)
	assert.Equal(t, "Post devlogs", store.cards[0].Tactic)
	assert.Equal(t, "general", store.cards[0].Niche)
}

func TestProcessSourceIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	fetch := &fakeFetcher{posts: []types.RedditPost{basicPost("x", now.Add(-time.Hour))}}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	_, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	itemsAfterFirst := len(store.items)
	chunksAfterFirst := len(store.chunks)
	stateAfterFirst := store.states[src.ID].LastSeenCreatedUTC

	// second pass: the fetcher stops at the watermark, nothing new appears
	count, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, store.items, itemsAfterFirst)
	assert.Len(t, store.chunks, chunksAfterFirst)
	assert.Empty(t, store.alerts)
	assert.Equal(t, stateAfterFirst, store.states[src.ID].LastSeenCreatedUTC)
}

func TestSpikeAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	// 15 items in the current 24h window, 3 in the previous one
	var posts []types.RedditPost
	for i := 0; i < 15; i++ {
		posts = append(posts, basicPost(string(rune('a'+i)), now.Add(-time.Duration(i+1)*time.Hour)))
	}
	for i := 0; i < 3; i++ {
		posts = append(posts, basicPost("prev"+string(rune('a'+i)), now.Add(-time.Duration(30+i)*time.Hour)))
	}
	fetch := &fakeFetcher{posts: posts}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	_, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	assert.Equal(t, "item_volume_24h", alert.Metric)
	assert.Equal(t, 15.0, alert.CurrentValue)
	assert.Equal(t, 3.0, alert.PreviousValue)
	assert.InDelta(t, 5.0, alert.Factor, 0.001)
	assert.NotEmpty(t, alert.TopItemIDs)
}

func TestNoSpikeBelowMinCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	// factor is high but volume is below the minimum
	var posts []types.RedditPost
	for i := 0; i < 5; i++ {
		posts = append(posts, basicPost(string(rune('a'+i)), now.Add(-time.Duration(i+1)*time.Hour)))
	}
	fetch := &fakeFetcher{posts: posts}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	_, err := s.ProcessSource(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, store.alerts)
}

func TestBackfillStopsAtCutoffWithoutStateUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	src, _ := store.CreateSource(context.Background(), &types.Source{Kind: types.SourceKindSubreddit, Value: "gamedev", Enabled: true})

	fetch := &fakeFetcher{posts: []types.RedditPost{
		basicPost("in1", now.Add(-10*time.Hour)),
		basicPost("in2", now.Add(-40*time.Hour)),
		basicPost("out", now.Add(-100*time.Hour)),
	}}
	s := newTestScheduler(store, fetch, &fakeExtractor{}, now)

	count, err := s.Backfill(context.Background(), src.ID, 72)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Contains(t, store.items, "t3_in1")
	assert.Contains(t, store.items, "t3_in2")
	assert.NotContains(t, store.items, "t3_out")
	assert.Nil(t, store.states[src.ID])
}

func TestReprocessCards(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.items["t3_old"] = &types.Item{
		ID: 1, ExternalID: "t3_old", ExternalURL: "https://reddit.com/x",
		Title: "Old post", Body: "Old advice", QualityScore: 0.9,
	}
	store.nextItemID = 1

	ex := &fakeExtractor{card: &extractor.Card{
		PlatformTargets: []string{"steam"},
		Tactic:          "Run a demo during a festival",
		Confidence:      0.9,
	}}
	s := newTestScheduler(store, &fakeFetcher{}, ex, now)

	extracted, err := s.ReprocessCards(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, extracted)
	require.Len(t, store.cards, 1)
	assert.Equal(t, int64(1), store.cards[0].ItemID)

	// a second run finds nothing to do
	extracted, err = s.ReprocessCards(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 0, extracted)
}
