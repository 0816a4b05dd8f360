// Package events defines the lifecycle notifications published for each workflow run.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "videoresearch.workflow.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent   EventType = "workflow.run.started"
	RunCompletedEvent EventType = "workflow.run.completed"
	RunFailedEvent    EventType = "workflow.run.failed"
	RunAbortedEvent   EventType = "workflow.run.aborted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	IndexID       string `json:"index_id"`
	VideoID       string `json:"video_id"`
	ResearchQuery string `json:"research_query"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	IndexID        string        `json:"index_id"`
	VideoID        string        `json:"video_id"`
	ResearchChunks int           `json:"research_chunks"`
	PayloadTier    string        `json:"payload_tier"`
	Sources        int           `json:"sources"`
	Duration       time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// RunFailed is published when a stage failed or validation rejected the request.
type RunFailed struct {
	BaseEvent

	IndexID  string        `json:"index_id,omitempty"`
	VideoID  string        `json:"video_id,omitempty"`
	Step     string        `json:"step,omitempty"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

// RunAborted is published when the client went away before the run finished.
type RunAborted struct {
	BaseEvent

	Step     string        `json:"step,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e RunAborted) GetType() EventType {
	return RunAbortedEvent
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Metadata:  make(map[string]any),
	}
}
