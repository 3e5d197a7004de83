package services

import "strings"

// Chunker splits extracted text into fixed-size segments with a fixed
// overlap between neighbours. Splitting is a pure function of the input
// text and the two parameters; chunk order matches reading order and is
// reused as the ordinal index in chunk metadata.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

func NewChunker(maxChunkSize, overlap int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = 0
	}
	return &Chunker{maxChunkSize: maxChunkSize, overlap: overlap}
}

// Chunk returns the text's segments in reading order. Empty or
// whitespace-only input yields zero chunks; the caller decides whether
// that is an error.
func (c *Chunker) Chunk(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	step := c.maxChunkSize - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
