package types

import "time"

// RedditPost is the normalized record the fetcher adapter yields for one
// submission. ExternalID carries the t3_ kind prefix.
type RedditPost struct {
	ExternalID  string
	ExternalURL string
	Subreddit   string
	Title       string
	Body        string
	Author      string
	AuthorFlair *string
	Score       int
	NumComments int
	CreatedUTC  time.Time
	NSFW        bool
	Removed     bool
	RawJSON     map[string]interface{}
}

// RedditComment is the normalized record the fetcher adapter yields for one
// comment. ExternalID carries the t1_ kind prefix.
type RedditComment struct {
	ExternalID       string
	ParentExternalID *string
	Body             string
	Author           string
	AuthorFlair      *string
	Score            int
	CreatedUTC       time.Time
	Removed          bool
	RawJSON          map[string]interface{}
}
