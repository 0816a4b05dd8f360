// Package chunker splits large text into ordered, reassemblable pieces and
// bounds the size of serialized payloads.
package chunker

import (
	"iter"
	"unicode/utf8"
)

const DefaultChunkSize = 8000

// Chunk is one ordered slice of a larger text. Sizes are counted in
// characters so every Content is valid UTF-8 when the input is.
type Chunk struct {
	Content     string `json:"content"`
	ChunkIndex  int    `json:"chunk_index"`
	IsFinal     bool   `json:"is_final"`
	TotalLength int    `json:"total_length"`
	TotalChunks int    `json:"total_chunks"`
}

// NeedsChunking reports whether text is longer than size characters.
func NeedsChunking(text string, size int) bool {
	return utf8.RuneCountInString(text) > normalizeSize(size)
}

// Count returns how many chunks Chunks would yield.
func Count(text string, size int) int {
	size = normalizeSize(size)

	return (utf8.RuneCountInString(text) + size - 1) / size
}

// Chunks lazily yields text in pieces of at most size characters. Ranging
// over the sequence again recomputes it from scratch. Empty text yields
// nothing.
func Chunks(text string, size int) iter.Seq[Chunk] {
	size = normalizeSize(size)
	total := utf8.RuneCountInString(text)
	count := (total + size - 1) / size

	return func(yield func(Chunk) bool) {
		rest := text

		for i := range count {
			end := byteOffset(rest, size)

			chunk := Chunk{
				Content:     rest[:end],
				ChunkIndex:  i,
				IsFinal:     i == count-1,
				TotalLength: total,
				TotalChunks: count,
			}
			rest = rest[end:]

			if !yield(chunk) {
				return
			}
		}
	}
}

// ChunkText returns all chunks of text at once.
func ChunkText(text string, size int) []Chunk {
	chunks := make([]Chunk, 0, Count(text, size))
	for chunk := range Chunks(text, size) {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func normalizeSize(size int) int {
	if size <= 0 {
		return DefaultChunkSize
	}

	return size
}

// byteOffset returns the byte index just past the first n characters of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}

	return len(s)
}
