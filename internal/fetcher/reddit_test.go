package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-agent")
	c.http = resty.New().
		SetBaseURL(srv.URL).
		SetHeader("User-Agent", "test-agent").
		SetHeader("Accept", "application/json")
	c.sleep = func(time.Duration) {}
	return c
}

func postJSON(id string, createdUTC int64, score int) string {
	return fmt.Sprintf(`{
		"kind": "t3",
		"data": {
			"id": %q,
			"permalink": "/r/gamedev/comments/%s/",
			"subreddit": "gamedev",
			"title": "Launch tips",
			"selftext": "Use wishlists.",
			"author": "u1",
			"author_flair_text": "Dev",
			"score": %d,
			"num_comments": 12,
			"created_utc": %d,
			"over_18": false
		}
	}`, id, id, score, createdUTC)
}

func TestFetchSubredditNew(t *testing.T) {
	t.Run("yields normalized posts", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/r/gamedev/new.json", r.URL.Path)
			fmt.Fprintf(w, `{"data":{"after":"","children":[%s]}}`, postJSON("abc", now.Unix(), 50))
		}))

		var posts []types.RedditPost
		err := c.FetchSubredditNew(context.Background(), "gamedev", 100, nil, func(p types.RedditPost) error {
			posts = append(posts, p)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		p := posts[0]
		assert.Equal(t, "t3_abc", p.ExternalID)
		assert.Equal(t, "https://reddit.com/r/gamedev/comments/abc/", p.ExternalURL)
		assert.Equal(t, "gamedev", p.Subreddit)
		assert.Equal(t, 50, p.Score)
		assert.Equal(t, 12, p.NumComments)
		assert.Equal(t, now, p.CreatedUTC)
		require.NotNil(t, p.AuthorFlair)
		assert.Equal(t, "Dev", *p.AuthorFlair)
		assert.False(t, p.Removed)
	})

	t.Run("stops at last seen watermark", func(t *testing.T) {
		now := time.Now().UTC()
		lastSeen := now.Add(-30 * time.Minute)
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"data":{"after":"","children":[%s,%s]}}`,
				postJSON("new1", now.Unix(), 10),
				postJSON("old1", now.Add(-time.Hour).Unix(), 10))
		}))

		var seen []string
		err := c.FetchSubredditNew(context.Background(), "gamedev", 100, &lastSeen, func(p types.RedditPost) error {
			seen = append(seen, p.ExternalID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"t3_new1"}, seen)
	})

	t.Run("paginates via after cursor", func(t *testing.T) {
		now := time.Now().UTC()
		calls := 0
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if r.URL.Query().Get("after") == "" {
				fmt.Fprintf(w, `{"data":{"after":"cur1","children":[%s]}}`, postJSON("p1", now.Unix(), 10))
				return
			}
			assert.Equal(t, "cur1", r.URL.Query().Get("after"))
			fmt.Fprintf(w, `{"data":{"after":"","children":[%s]}}`, postJSON("p2", now.Add(-time.Minute).Unix(), 10))
		}))

		var seen []string
		err := c.FetchSubredditNew(context.Background(), "gamedev", 100, nil, func(p types.RedditPost) error {
			seen = append(seen, p.ExternalID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"t3_p1", "t3_p2"}, seen)
	})

	t.Run("retries on 429 then succeeds", func(t *testing.T) {
		now := time.Now().UTC()
		calls := 0
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprintf(w, `{"data":{"after":"","children":[%s]}}`, postJSON("p1", now.Unix(), 10))
		}))

		count := 0
		err := c.FetchSubredditNew(context.Background(), "gamedev", 100, nil, func(types.RedditPost) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, count)
	})

	t.Run("403 aborts without retry", func(t *testing.T) {
		calls := 0
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusForbidden)
		}))

		err := c.FetchSubredditNew(context.Background(), "gamedev", 100, nil, func(types.RedditPost) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 1, calls)
	})
}

func TestFetchSearch(t *testing.T) {
	t.Run("restricts to subreddit when given", func(t *testing.T) {
		now := time.Now().UTC()
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/r/indiedev/search.json", r.URL.Path)
			assert.Equal(t, "wishlist tips", r.URL.Query().Get("q"))
			assert.Equal(t, "on", r.URL.Query().Get("restrict_sr"))
			fmt.Fprintf(w, `{"data":{"after":"","children":[%s]}}`, postJSON("s1", now.Unix(), 10))
		}))

		count := 0
		err := c.FetchSearch(context.Background(), "wishlist tips", "indiedev", 100, nil, func(types.RedditPost) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestFetchComments(t *testing.T) {
	now := time.Now().UTC()
	commentJSON := func(id, body string) string {
		return fmt.Sprintf(`{
			"kind": "t1",
			"data": {
				"id": %q,
				"parent_id": "t3_abc",
				"body": %q,
				"author": "c1",
				"score": 7,
				"created_utc": %d
			}
		}`, id, body, now.Unix())
	}

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments/abc.json", r.URL.Path)
		assert.Equal(t, "top", r.URL.Query().Get("sort"))
		fmt.Fprintf(w, `[{"data":{"children":[]}},{"data":{"children":[%s,%s]}}]`,
			commentJSON("c1", "great advice"),
			commentJSON("c2", "[removed]"))
	}))

	var comments []types.RedditComment
	err := c.FetchComments(context.Background(), "t3_abc", 50, 3, func(cm types.RedditComment) error {
		comments = append(comments, cm)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "t1_c1", comments[0].ExternalID)
	require.NotNil(t, comments[0].ParentExternalID)
	assert.Equal(t, "t3_abc", *comments[0].ParentExternalID)
	assert.Equal(t, 7, comments[0].Score)
}
