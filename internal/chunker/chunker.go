// Package chunker splits normalized text into bounded, hashed,
// retrieval-friendly chunks. Each chunk carries a metadata header and the
// body is fenced in untrusted-content sentinels so downstream prompts can
// instruct the model to treat it as data, never as instructions.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
)

// Sentinels fencing untrusted scraped content inside every chunk.
const (
	StartSentinel = "!!! START UNTRUSTED CONTENT !!!"
	EndSentinel   = "!!! END UNTRUSTED CONTENT !!!"
)

// Chunk is one emitted span with the SHA-256 of its final text.
type Chunk struct {
	Text string
	Hash string
}

// Chunker splits text under fixed window bounds.
type Chunker struct {
	minChars int
	maxChars int
	overlap  int
}

// New builds a chunker from the chunk configuration. Overlap is a fraction
// of the max window.
func New(cfg config.ChunkConfig) *Chunker {
	return &Chunker{
		minChars: cfg.MinChars,
		maxChars: cfg.MaxChars,
		overlap:  int(float64(cfg.MaxChars) * cfg.OverlapPercent),
	}
}

// BuildHeader renders the standard metadata header prefixed to every chunk.
func BuildHeader(subreddit string, score int, createdUTC, url, title string) string {
	header := fmt.Sprintf("[r/%s | %d pts | %s]", subreddit, score, createdUTC)
	if title != "" {
		header += "\nTitle: " + title
	}
	header += "\nURL: " + url
	header += "\n---"
	return header
}

// Split chunks text with the metadata header prepended. The cut point inside
// each window prefers a paragraph break, then a line break, then a space,
// each only when it lands past the window midpoint; otherwise it cuts hard
// at the window edge. Chunks shorter than the minimum are dropped.
func (c *Chunker) Split(text, header string) []Chunk {
	if text == "" {
		return nil
	}

	fenced := StartSentinel + "\n" + text + "\n" + EndSentinel
	full := header + "\n" + fenced

	var chunks []Chunk
	start := 0
	textLen := len(full)

	for start < textLen {
		end := start + c.maxChars
		if end > textLen {
			end = textLen
		}

		if end < textLen {
			end = c.cutPoint(full, start, end)
		}

		content := strings.TrimSpace(full[start:end])
		if len(content) >= c.minChars {
			sum := sha256.Sum256([]byte(content))
			chunks = append(chunks, Chunk{Text: content, Hash: hex.EncodeToString(sum[:])})
		}

		start += c.maxChars - c.overlap
	}

	return chunks
}

// cutPoint picks the break for the window [start, end), requiring every
// candidate to land past the midpoint so chunks stay balanced.
func (c *Chunker) cutPoint(full string, start, end int) int {
	window := full[start:end]
	mid := start + c.maxChars/2

	if idx := strings.LastIndex(window, "\n\n"); idx != -1 && start+idx > mid {
		return start + idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx != -1 && start+idx > mid {
		return start + idx + 1
	}
	if idx := strings.LastIndex(window, " "); idx != -1 && start+idx > mid {
		return start + idx + 1
	}
	return end
}
