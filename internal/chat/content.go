package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	// DefaultMaxContentLength is the longest message body accepted, in runes.
	DefaultMaxContentLength = 2000
	repeatRunLimit          = 5
	capsMinLength           = 10
)

// DefaultBlockedWords is the stock block-list.
var DefaultBlockedWords = []string{"spam", "toxic", "hate"}

// ContentRules is a best-effort filter for obviously unwanted messages.
// It is a courtesy heuristic and trivially evaded; it is not a security
// control.
type ContentRules struct {
	blocked   []string
	maxLength int
}

// NewContentRules builds rules from a block-list. Blank entries are dropped
// and a non-positive maxLength selects DefaultMaxContentLength.
func NewContentRules(blocked []string, maxLength int) *ContentRules {
	if maxLength <= 0 {
		maxLength = DefaultMaxContentLength
	}
	fold := cases.Fold()
	words := make([]string, 0, len(blocked))
	for _, w := range blocked {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		words = append(words, fold.String(w))
	}
	return &ContentRules{blocked: words, maxLength: maxLength}
}

// Check returns nil when content is acceptable, otherwise an error matching
// ErrContentRejected whose message can be shown to the author.
func (r *ContentRules) Check(content string) error {
	if utf8.RuneCountInString(content) > r.maxLength {
		return Reject(CodeContentRejected, "Warning: Message is too long")
	}

	// cases.Caser keeps state between calls and must not be shared.
	folded := cases.Fold().String(content)
	for _, w := range r.blocked {
		if strings.Contains(folded, w) {
			return Reject(CodeContentRejected, "Warning: Inappropriate language detected")
		}
	}

	if hasRepeatedRun(content, repeatRunLimit) {
		return Reject(CodeContentRejected, "Warning: Excessive character repetition")
	}

	if isShouting(content) {
		return Reject(CodeContentRejected, "Warning: Excessive caps")
	}

	return nil
}

func hasRepeatedRun(s string, limit int) bool {
	var prev rune
	run := 0
	for i, c := range s {
		if i > 0 && c == prev {
			run++
		} else {
			run = 1
		}
		if run >= limit {
			return true
		}
		prev = c
	}
	return false
}

// isShouting reports more than capsMinLength runes with at least one letter
// and no lower-case letters.
func isShouting(s string) bool {
	if utf8.RuneCountInString(s) <= capsMinLength {
		return false
	}
	letters := false
	for _, c := range s {
		if unicode.IsLower(c) {
			return false
		}
		if unicode.IsLetter(c) {
			letters = true
		}
	}
	return letters
}
