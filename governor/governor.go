package governor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPayloadTooLarge is returned when the assembled corpus exceeds the hard ceiling.
var ErrPayloadTooLarge = errors.New("payload too large: reduce documents/URLs or split into batches")

// Default budget values.
const (
	DefaultMaxTotalChars  = 120000
	DefaultChunkChars     = 12000
	DefaultMaxPartials    = 12
	DefaultMaxHistoryMsgs = 12
)

// Budgets bounds the work a single synthesis or chat turn may cause.
// It is loaded once at startup and treated as immutable afterwards.
type Budgets struct {
	MaxTotalChars  int
	ChunkChars     int
	MaxPartials    int
	MaxHistoryMsgs int
}

// DefaultBudgets returns the budgets used when configuration leaves them unset.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxTotalChars:  DefaultMaxTotalChars,
		ChunkChars:     DefaultChunkChars,
		MaxPartials:    DefaultMaxPartials,
		MaxHistoryMsgs: DefaultMaxHistoryMsgs,
	}
}

// Validate checks that every budget is positive.
func (b Budgets) Validate() error {
	switch {
	case b.MaxTotalChars <= 0:
		return fmt.Errorf("budgets: MaxTotalChars must be positive, got %d", b.MaxTotalChars)
	case b.ChunkChars <= 0:
		return fmt.Errorf("budgets: ChunkChars must be positive, got %d", b.ChunkChars)
	case b.MaxPartials <= 0:
		return fmt.Errorf("budgets: MaxPartials must be positive, got %d", b.MaxPartials)
	case b.MaxHistoryMsgs <= 0:
		return fmt.Errorf("budgets: MaxHistoryMsgs must be positive, got %d", b.MaxHistoryMsgs)
	}
	return nil
}

// HardCeiling is the corpus length above which GuardPayloadSize rejects input.
func (b Budgets) HardCeiling() int {
	return 2 * b.MaxTotalChars
}

// GuardPayloadSize fails with ErrPayloadTooLarge when totalChars exceeds twice
// MaxTotalChars. A length exactly at the ceiling is accepted.
func (b Budgets) GuardPayloadSize(totalChars int) error {
	if totalChars > b.HardCeiling() {
		return fmt.Errorf("%w (%d chars, limit %d)", ErrPayloadTooLarge, totalChars, b.HardCeiling())
	}
	return nil
}

// EnforceMaxChars trims surrounding whitespace and hard-truncates to limit
// code points. No word-boundary handling, no ellipsis.
func EnforceMaxChars(text string, limit int) string {
	return Truncate(strings.TrimSpace(text), limit)
}

// Truncate returns the first limit code points of text, or text itself when shorter.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// Len counts code points.
func Len(text string) int {
	return len([]rune(text))
}

// Chunk splits text into consecutive, non-overlapping pieces of size code
// points and keeps at most maxChunks of them. The second return value is the
// number of pieces discarded by the maxChunks cap.
//
// Blank text yields no chunks.
func Chunk(text string, size, maxChunks int) ([]string, int) {
	text = strings.TrimSpace(text)
	if text == "" || size <= 0 {
		return nil, 0
	}
	runes := []rune(text)
	total := (len(runes) + size - 1) / size
	keep := total
	if maxChunks >= 0 && keep > maxChunks {
		keep = maxChunks
	}

	chunks := make([]string, 0, keep)
	for i := 0; i < keep; i++ {
		end := min((i+1)*size, len(runes))
		chunks = append(chunks, string(runes[i*size:end]))
	}
	return chunks, total - keep
}
