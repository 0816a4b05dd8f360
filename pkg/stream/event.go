// Package stream defines the newline-delimited JSON events a workflow run
// pushes to its client, and the pieces needed to write and read them.
package stream

import (
	"encoding/json"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/chunker"
)

type EventType string

const (
	TypeProgress      EventType = "progress"
	TypeData          EventType = "data"
	TypeResearchChunk EventType = "research_chunk"
	TypeError         EventType = "error"
	TypeComplete      EventType = "complete"
)

type Step string

const (
	StepVideoDetails Step = "video_details"
	StepAnalysis     Step = "analysis"
	StepResearch     Step = "research"
)

// Progress checkpoints. Progress never decreases within one stream.
const (
	ProgressStart    = 0
	ProgressMetadata = 33
	ProgressAnalysis = 66
	ProgressDone     = 100
)

// Event is one line of the stream. Events are immutable once built.
type Event struct {
	Type     EventType       `json:"type"`
	Step     Step            `json:"step,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Progress *int            `json:"progress,omitempty"`
}

func NewProgress(step Step, message string, progress int) Event {
	return Event{Type: TypeProgress, Step: step, Message: message, Progress: &progress}
}

// NewData wraps an already serialized stage payload.
func NewData(step Step, data json.RawMessage, progress int) Event {
	return Event{Type: TypeData, Step: step, Data: data, Progress: &progress}
}

// NewResearchChunk carries one piece of the research text. It reports the
// analysis checkpoint since research is not finished yet.
func NewResearchChunk(chunk chunker.Chunk) Event {
	data, _ := json.Marshal(chunk)
	progress := ProgressAnalysis

	return Event{Type: TypeResearchChunk, Step: StepResearch, Data: data, Progress: &progress}
}

// NewError reports a terminal failure. step is empty for failures that
// happen before any stage starts.
func NewError(step Step, message string) Event {
	return Event{Type: TypeError, Step: step, Message: message}
}

func NewComplete(data json.RawMessage) Event {
	progress := ProgressDone

	return Event{Type: TypeComplete, Data: data, Progress: &progress}
}

// ProgressValue returns the event's progress, or -1 when it carries none.
func (e Event) ProgressValue() int {
	if e.Progress == nil {
		return -1
	}

	return *e.Progress
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Type == TypeError || e.Type == TypeComplete
}

// Chunk decodes the payload of a research_chunk event.
func (e Event) Chunk() (chunker.Chunk, error) {
	var chunk chunker.Chunk
	err := json.Unmarshal(e.Data, &chunk)

	return chunk, err
}
