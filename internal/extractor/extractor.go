// Package extractor turns normalized posts into structured strategy cards
// by prompting an LLM. Every failure mode yields no card; nothing here may
// abort an ingestion pass.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/models/chat"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/normalize"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types"
)

const (
	maxTitleChars    = 500
	maxBodyChars     = 2000
	maxCommentChars  = 300
	maxTopComments   = 3
	maxSnippetWords  = 20
	requestTimeout   = 60 * time.Second
	extractionPrompt = `You are a strategy analyst for indie game developers. Analyze this Reddit post and extract actionable advice if present.

Post Title: %s
Post Body: %s
%s

If this post contains useful, actionable advice for indie game developers (marketing tips, development advice, community building, launch strategies, social media tactics, etc.), extract it as JSON:
{
  "platform_targets": ["platforms this applies to, e.g. steam, tiktok, instagram, twitter, youtube, discord"],
  "niche": "the niche or industry (e.g. indie games, mobile games, game dev)",
  "tactic": "short summary of the actionable advice (1-2 sentences)",
  "steps": [
    {"step": 1, "action": "first action to take"},
    {"step": 2, "action": "second action to take"}
  ],
  "confidence": 0.0 to 1.0 (how confident you are this is useful advice)
}

If this post does NOT contain actionable advice (e.g., it's just news, a question without good answers, venting, or off-topic), respond with: null

Respond ONLY with valid JSON or the word null. No explanations.`
)

// Card is the parsed extraction result before persistence.
type Card struct {
	PlatformTargets []string               `json:"platform_targets"`
	Niche           string                 `json:"niche"`
	Tactic          string                 `json:"tactic"`
	Steps           []types.CardStep       `json:"steps"`
	Preconditions   map[string]interface{} `json:"preconditions"`
	Metrics         map[string]interface{} `json:"metrics"`
	Risks           []string               `json:"risks"`
	Confidence      float64                `json:"confidence"`
	Evidence        types.CardEvidence     `json:"evidence"`
}

// Extractor prompts a chat backend for strategy cards.
type Extractor struct {
	cfg     config.LLMConfig
	backend chat.Chat
}

// New builds an extractor from the LLM configuration. A disabled or
// misconfigured backend is not an error; extraction just yields no cards.
func New(cfg config.LLMConfig) *Extractor {
	e := &Extractor{cfg: cfg}
	if !cfg.Enabled {
		return e
	}
	chatCfg := &chat.Config{Provider: cfg.Provider}
	switch cfg.Provider {
	case chat.ProviderOllama:
		chatCfg.BaseURL = cfg.OllamaHost
		chatCfg.ModelName = cfg.OllamaModel
	case chat.ProviderOpenAI:
		chatCfg.BaseURL = cfg.OpenAIBaseURL
		chatCfg.ModelName = cfg.OpenAIModel
		chatCfg.APIKey = cfg.OpenAIAPIKey
	}
	backend, err := chat.NewChat(chatCfg)
	if err != nil {
		logger.Warnf(context.Background(), "llm provider %q not supported, extraction disabled: %v", cfg.Provider, err)
		return e
	}
	e.backend = backend
	return e
}

// NewWithBackend builds an extractor over an explicit backend, for tests.
func NewWithBackend(backend chat.Chat) *Extractor {
	return &Extractor{cfg: config.LLMConfig{Enabled: true}, backend: backend}
}

// Extract prompts the model with the post and up to three top comments.
// It returns nil when the post holds no actionable advice or when anything
// goes wrong; errors are logged, never propagated.
func (e *Extractor) Extract(ctx context.Context, title, body string, topComments []string, permalink string) *Card {
	if !e.cfg.Enabled || e.backend == nil {
		return nil
	}

	prompt := e.buildPrompt(title, body, topComments)

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := e.backend.Chat(reqCtx, []chat.Message{{Role: "user", Content: prompt}}, &chat.Options{
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		logger.Errorf(ctx, "strategy extraction request failed: %v", err)
		return nil
	}

	card, err := ParseResponse(resp.Content, permalink)
	if err != nil {
		logger.Warnf(ctx, "failed to parse llm response: %v", err)
		return nil
	}
	if card != nil {
		logger.Infof(ctx, "extracted strategy card: %s", normalize.TruncateWords(card.Tactic, 10))
	}
	return card
}

func (e *Extractor) buildPrompt(title, body string, topComments []string) string {
	var commentsSection string
	if len(topComments) > 0 {
		var sb strings.Builder
		sb.WriteString("Top Comments:\n")
		for i, c := range topComments {
			if i >= maxTopComments {
				break
			}
			sb.WriteString("- " + clip(c, maxCommentChars) + "\n")
		}
		commentsSection = strings.TrimRight(sb.String(), "\n")
	}
	return fmt.Sprintf(extractionPrompt, clip(title, maxTitleChars), clip(body, maxBodyChars), commentsSection)
}

// ParseResponse interprets the raw model output. A "null" literal or empty
// content means no card; fenced JSON is unwrapped; an array response is
// reduced to its first element. The permalink always overwrites whatever
// the model put in the evidence, and quote snippets are capped at twenty
// words each.
func ParseResponse(content, permalink string) (*Card, error) {
	content = strings.TrimSpace(content)
	if content == "" || strings.EqualFold(content, "null") {
		return nil, nil
	}

	if strings.HasPrefix(content, "```") {
		content = unwrapFence(content)
	}

	var card Card
	if err := json.Unmarshal([]byte(content), &card); err != nil {
		// The model sometimes returns several strategies as an array.
		var cards []Card
		if arrErr := json.Unmarshal([]byte(content), &cards); arrErr != nil {
			return nil, err
		}
		if len(cards) == 0 {
			return nil, nil
		}
		card = cards[0]
	}

	card.Evidence.Permalink = permalink

	if card.Tactic == "" || len(card.PlatformTargets) == 0 {
		return nil, errors.New("card missing required fields")
	}

	for i, s := range card.Evidence.QuoteSnippets {
		card.Evidence.QuoteSnippets[i] = normalize.TruncateWords(s, maxSnippetWords)
	}
	return &card, nil
}

func unwrapFence(content string) string {
	parts := strings.SplitN(content, "```", 3)
	if len(parts) < 2 {
		return content
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
