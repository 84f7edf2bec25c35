package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/models/chat"
)

type stubChat struct {
	content string
	err     error
}

func (s *stubChat) Chat(ctx context.Context, messages []chat.Message, opts *chat.Options) (*chat.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &chat.Response{Content: s.content}, nil
}

func (s *stubChat) GetModelName() string { return "stub" }

const validCard = `{
  "platform_targets": ["tiktok"],
  "niche": "indie games",
  "tactic": "Post devlogs weekly",
  "steps": [{"step": 1, "action": "Record a clip"}],
  "confidence": 0.8,
  "evidence": {"quote_snippets": ["weekly devlogs kept my community engaged through the whole two year development grind and honestly saved the launch from total silence"], "permalink": "https://model-invented.example"}
}`

func TestParseResponse(t *testing.T) {
	t.Run("null literal yields no card", func(t *testing.T) {
		card, err := ParseResponse("null", "https://p")
		require.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("empty yields no card", func(t *testing.T) {
		card, err := ParseResponse("   ", "https://p")
		require.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("case-insensitive null", func(t *testing.T) {
		card, err := ParseResponse("NULL", "https://p")
		require.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("valid card parsed and permalink injected", func(t *testing.T) {
		card, err := ParseResponse(validCard, "https://reddit.com/r/gamedev/1")
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, "Post devlogs weekly", card.Tactic)
		assert.Equal(t, "https://reddit.com/r/gamedev/1", card.Evidence.Permalink)
	})

	t.Run("fenced code block unwrapped", func(t *testing.T) {
		card, err := ParseResponse("```json\n"+validCard+"\n```", "https://p")
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, "Post devlogs weekly", card.Tactic)
	})

	t.Run("array response takes first element", func(t *testing.T) {
		card, err := ParseResponse("["+validCard+"]", "https://p")
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, "Post devlogs weekly", card.Tactic)
	})

	t.Run("empty array yields no card", func(t *testing.T) {
		card, err := ParseResponse("[]", "https://p")
		require.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("missing tactic rejected", func(t *testing.T) {
		card, err := ParseResponse(`{"platform_targets":["steam"],"confidence":0.9}`, "https://p")
		assert.Error(t, err)
		assert.Nil(t, card)
	})

	t.Run("missing platform targets rejected", func(t *testing.T) {
		card, err := ParseResponse(`{"tactic":"do things","confidence":0.9}`, "https://p")
		assert.Error(t, err)
		assert.Nil(t, card)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		card, err := ParseResponse("here is my analysis: the post is great", "https://p")
		assert.Error(t, err)
		assert.Nil(t, card)
	})

	t.Run("evidence snippets capped at twenty words", func(t *testing.T) {
		card, err := ParseResponse(validCard, "https://p")
		require.NoError(t, err)
		require.NotNil(t, card)
		require.Len(t, card.Evidence.QuoteSnippets, 1)
		words := strings.Fields(card.Evidence.QuoteSnippets[0])
		assert.Len(t, words, 20)
		assert.Contains(t, card.Evidence.QuoteSnippets[0], "...")
	})
}

func TestExtract(t *testing.T) {
	t.Run("backend error yields nil", func(t *testing.T) {
		e := NewWithBackend(&stubChat{err: errors.New("connection refused")})
		assert.Nil(t, e.Extract(context.Background(), "t", "b", nil, "https://p"))
	})

	t.Run("null response yields nil", func(t *testing.T) {
		e := NewWithBackend(&stubChat{content: "null"})
		assert.Nil(t, e.Extract(context.Background(), "t", "b", nil, "https://p"))
	})

	t.Run("garbage response yields nil", func(t *testing.T) {
		e := NewWithBackend(&stubChat{content: "not json at all"})
		assert.Nil(t, e.Extract(context.Background(), "t", "b", nil, "https://p"))
	})

	t.Run("valid response yields card", func(t *testing.T) {
		e := NewWithBackend(&stubChat{content: validCard})
		card := e.Extract(context.Background(), "t", "b", []string{"comment one", "comment two"}, "https://p")
		require.NotNil(t, card)
		assert.Equal(t, "https://p", card.Evidence.Permalink)
	})

	t.Run("mock provider round trip", func(t *testing.T) {
		e := NewWithBackend(chat.NewMockChat())
		card := e.Extract(context.Background(), "t", "b", nil, "https://p")
		require.NotNil(t, card)
		assert.Equal(t, "Use vertical slice gameplay loops", card.Tactic)
		assert.Equal(t, "https://p", card.Evidence.Permalink)
	})
}
