// Package chunker splits extracted document text into overlapping,
// boundary-aware chunks sized in characters.
package chunker

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker walks text in a sliding window of Size characters, snapping the
// window end back to the last sentence terminator or newline when that
// break point lies past half the window. Consecutive windows overlap by
// Overlap characters. Sizes count runes, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. Overlap must stay below size or the
// window would never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be less than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into ordered, trimmed, non-empty chunks.
// A text no longer than the chunk size yields exactly one chunk.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	textLen := len(runes)

	var chunks []string
	start := 0

	for start < textLen {
		end := start + c.size
		if end > textLen {
			end = textLen
		}
		window := runes[start:end]

		// Snap to a sentence or line boundary when this is not the final
		// window and the break point lies past half the window.
		if end < textLen {
			breakPoint := -1
			for i := len(window) - 1; i >= 0; i-- {
				if window[i] == '.' || window[i] == '\n' {
					breakPoint = i
					break
				}
			}
			if breakPoint > c.size/2 {
				window = window[:breakPoint+1]
				end = start + breakPoint + 1
			}
		}

		if trimmed := strings.TrimSpace(string(window)); trimmed != "" {
			chunks = append(chunks, trimmed)
		}

		if end >= textLen {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Guarded by New, but never loop on a degenerate window.
			next = start + 1
		}
		start = next
	}

	return chunks
}
