// Package markdown prepares article text for Telegram: MarkdownV2
// escaping and splitting into message-sized chunks.
package markdown

import (
	"fmt"
	"strings"
)

// DefaultLimit is Telegram's message size limit in characters.
const DefaultLimit = 4096

// EscapeV2 escapes every character MarkdownV2 treats as markup. The
// result is valid formatted text at any split point except between a
// backslash and the rune it escapes.
func EscapeV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	for _, r := range text {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Split cuts text into an ordered sequence of chunks, each at most
// limit characters. Preferred cut points, in order: paragraph break,
// line break, sentence end, space. A hard cut never separates a
// backslash from the rune it escapes. Concatenating the chunks
// reproduces the input exactly.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		if len(runes)-start <= limit {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := findCut(runes, start, start+limit)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

// findCut picks the cut position in (start, end]. Cuts land after the
// separator so no content is dropped.
func findCut(runes []rune, start, end int) int {
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > start+1; i-- {
		if runes[i-1] == ' ' && runes[i-2] == '.' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	// No natural boundary; hard cut, stepping off an escape pair.
	cut := end
	if runes[cut-1] == '\\' && !escapedAt(runes, start, cut-1) {
		cut--
	}
	if cut == start {
		cut = end
	}
	return cut
}

// escapedAt reports whether the backslash at pos is itself escaped,
// i.e. preceded by an odd run of backslashes.
func escapedAt(runes []rune, start, pos int) bool {
	n := 0
	for i := pos - 1; i >= start && runes[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// PartialDeliveryError reports a multi-chunk reply interrupted partway.
// Sent is the number of chunks delivered before the failure.
type PartialDeliveryError struct {
	Sent  int
	Total int
	Err   error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("delivered %d of %d chunks: %v", e.Sent, e.Total, e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// SendFunc delivers a single chunk; i is the zero-based position.
type SendFunc func(i int, chunk string) error

// Deliver sends chunks in order and stops at the first failure,
// reporting how far it got.
func Deliver(chunks []string, send SendFunc) error {
	for i, chunk := range chunks {
		if err := send(i, chunk); err != nil {
			return &PartialDeliveryError{Sent: i, Total: len(chunks), Err: err}
		}
	}
	return nil
}
