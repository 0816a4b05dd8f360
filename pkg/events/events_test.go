package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetType(t *testing.T) {
	assert.Equal(t, RunStartedEvent, RunStarted{}.GetType())
	assert.Equal(t, RunCompletedEvent, RunCompleted{}.GetType())
	assert.Equal(t, RunFailedEvent, RunFailed{}.GetType())
	assert.Equal(t, RunAbortedEvent, RunAborted{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	base := NewBaseEvent(RunStartedEvent, "run-1234abcd")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, RunStartedEvent, base.Type)
	assert.Equal(t, "run-1234abcd", base.RunID)
	assert.False(t, base.Timestamp.Before(before))
	assert.NotNil(t, base.Metadata)
}

func TestRunFailed_JSONSerialization(t *testing.T) {
	event := &RunFailed{
		BaseEvent: NewBaseEvent(RunFailedEvent, "run-1"),
		IndexID:   "idx-1",
		VideoID:   "vid-1",
		Step:      "research",
		Reason:    "Request timed out - Sonar research is taking too long",
		Duration:  3 * time.Second,
	}

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"workflow.run.failed"`)
	assert.Contains(t, string(jsonData), `"run_id":"run-1"`)
	assert.Contains(t, string(jsonData), `"step":"research"`)

	var deserialized RunFailed

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)
	assert.Equal(t, event.Reason, deserialized.Reason)
	assert.Equal(t, event.Duration, deserialized.Duration)
	assert.Equal(t, event.Step, deserialized.Step)
}
