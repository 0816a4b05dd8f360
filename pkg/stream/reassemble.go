package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/chunker"
)

var (
	ErrChunkOutOfOrder   = errors.New("research chunk out of order")
	ErrChunkInconsistent = errors.New("research chunk metadata inconsistent")
	ErrReassemblyPending = errors.New("research text incomplete")
)

// Reassembler rebuilds research text from research_chunk events received in
// order.
type Reassembler struct {
	buf         strings.Builder
	next        int
	totalChunks int
	totalLength int
	done        bool
}

func (r *Reassembler) Add(chunk chunker.Chunk) error {
	if r.done || chunk.ChunkIndex != r.next {
		return fmt.Errorf("%w: got %d, want %d", ErrChunkOutOfOrder, chunk.ChunkIndex, r.next)
	}

	if r.next == 0 {
		r.totalChunks = chunk.TotalChunks
		r.totalLength = chunk.TotalLength
	} else if chunk.TotalChunks != r.totalChunks || chunk.TotalLength != r.totalLength {
		return ErrChunkInconsistent
	}

	if chunk.IsFinal != (chunk.ChunkIndex == chunk.TotalChunks-1) {
		return ErrChunkInconsistent
	}

	r.buf.WriteString(chunk.Content)
	r.next++
	r.done = chunk.IsFinal

	return nil
}

// Started reports whether any chunk has been added.
func (r *Reassembler) Started() bool {
	return r.next > 0
}

// Text returns the reassembled text once the final chunk has arrived.
func (r *Reassembler) Text() (string, error) {
	if !r.done {
		return "", ErrReassemblyPending
	}

	return r.buf.String(), nil
}
