// Package normalize strips markdown, masks PII and detects removed or
// deleted content before anything is scored, chunked or shown to a model.
package normalize

import (
	"regexp"
	"strings"
)

// Reddit usernames: u/name or /u/name.
var redditUserPattern = regexp.MustCompile(`(?i)/?u/[\w-]+`)

var emailPattern = regexp.MustCompile(`(?i)[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Phone numbers with optional country code and hyphen/dot/space/paren
// separators.
var phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

var (
	headerPattern       = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldPattern         = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern       = regexp.MustCompile(`\*(.+?)\*`)
	boldUnderPattern    = regexp.MustCompile(`__(.+?)__`)
	italicUnderPattern  = regexp.MustCompile(`_(.+?)_`)
	strikePattern       = regexp.MustCompile(`~~(.+?)~~`)
	linkPattern         = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	inlineCodePattern   = regexp.MustCompile("`([^`]+)`")
	codeBlockPattern    = regexp.MustCompile("(?s)```.*?```")
	indentedCodePattern = regexp.MustCompile(`(?m)^(?: {4}|\t).+$`)
	blockquotePattern   = regexp.MustCompile(`(?m)^>\s*`)
	hrPattern           = regexp.MustCompile(`(?m)^[-*_]{3,}$`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`  +`)
)

// Result is the outcome of normalizing one piece of text.
type Result struct {
	Text      string
	IsRemoved bool
	IsDeleted bool
}

// StripMarkdown removes markdown formatting while preserving the visible
// content. Code blocks collapse to a "[code block]" sentinel.
func StripMarkdown(text string) string {
	if text == "" {
		return ""
	}
	text = codeBlockPattern.ReplaceAllString(text, "[code block]")
	text = indentedCodePattern.ReplaceAllString(text, "")
	text = headerPattern.ReplaceAllString(text, "")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = boldUnderPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = italicUnderPattern.ReplaceAllString(text, "$1")
	text = strikePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = blockquotePattern.ReplaceAllString(text, "")
	text = hrPattern.ReplaceAllString(text, "")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	text = multiSpacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// MaskPII replaces Reddit usernames, email addresses and phone numbers with
// bracketed placeholders. Subreddit mentions (r/...) are left intact.
func MaskPII(text string) string {
	if text == "" {
		return ""
	}
	text = redditUserPattern.ReplaceAllString(text, "[user]")
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	return text
}

// DetectRemovedDeleted reports whether text is a removal or deletion marker.
// An author of "[deleted]" also marks the content deleted.
func DetectRemovedDeleted(text, author string) (isRemoved, isDeleted bool) {
	if text == "" {
		return false, false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	isRemoved = lower == "[removed]" || lower == "[removed by reddit]"
	isDeleted = lower == "[deleted]" || author == "[deleted]"
	return isRemoved, isDeleted
}

// Text runs the full pipeline: removal detection first, then markdown
// stripping and PII masking. Removed or deleted content yields empty text.
func Text(text, author string) Result {
	isRemoved, isDeleted := DetectRemovedDeleted(text, author)
	if isRemoved || isDeleted {
		return Result{Text: "", IsRemoved: isRemoved, IsDeleted: isDeleted}
	}
	return Result{Text: MaskPII(StripMarkdown(text))}
}

// TruncateWords limits text to maxWords whitespace tokens, appending an
// ellipsis when tokens were dropped. Used for evidence snippets.
func TruncateWords(text string, maxWords int) string {
	if text == "" {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
