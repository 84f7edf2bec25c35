package repository

import (
	"encoding/json"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

// safeRawKeys is the whitelist applied to raw payloads before persistence.
// Anything outside it is dropped so oversized or unexpected fields (award
// lists, media variants) never reach the database.
var safeRawKeys = map[string]struct{}{
	// common
	"id": {}, "name": {}, "created_utc": {}, "permalink": {}, "url": {},
	"score": {}, "ups": {}, "downs": {}, "upvote_ratio": {}, "num_comments": {},
	"over_18": {},
	// text / content
	"title": {}, "selftext": {}, "body": {}, "link_flair_text": {},
	"author_flair_text": {},
	// author
	"author": {}, "author_fullname": {}, "is_submitter": {},
	// metadata
	"subreddit": {}, "subreddit_id": {}, "domain": {}, "is_self": {},
	"is_video": {}, "post_hint": {}, "whitelist_status": {}, "parent_id": {},
	"link_id": {},
	// tree
	"depth": {}, "replies": {},
}

const maxRawListItems = 10

// PruneRawJSON whitelists a raw payload against the safe key set. Nested
// objects are pruned recursively down to maxDepth; lists survive only when
// their first element is a primitive and are truncated to ten elements,
// otherwise they collapse to an empty list. The result is always valid JSON.
func PruneRawJSON(raw map[string]interface{}, maxDepth int) map[string]interface{} {
	if raw == nil {
		return nil
	}
	pruned := make(map[string]interface{})
	for k, v := range raw {
		if _, ok := safeRawKeys[k]; !ok {
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			if maxDepth > 0 {
				pruned[k] = PruneRawJSON(val, maxDepth-1)
			} else {
				pruned[k] = map[string]interface{}{}
			}
		case []interface{}:
			if len(val) > 0 && isPrimitive(val[0]) {
				if len(val) > maxRawListItems {
					val = val[:maxRawListItems]
				}
				pruned[k] = val
			} else {
				pruned[k] = []interface{}{}
			}
		default:
			pruned[k] = v
		}
	}
	return pruned
}

// pruneRawColumn applies PruneRawJSON to an already-encoded raw payload.
// Unparseable payloads are dropped rather than stored.
func pruneRawColumn(raw types.JSON) types.JSON {
	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	pruned, err := types.MarshalToJSON(PruneRawJSON(decoded, 2))
	if err != nil {
		return nil
	}
	return pruned
}

func isPrimitive(v interface{}) bool {
	switch v.(type) {
	case string, float64, int, int64, bool, nil:
		return true
	}
	return false
}
