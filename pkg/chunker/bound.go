package chunker

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultMaxPayloadBytes = 30000

	// ReducedCitations and ReducedSources cap list fields once a payload has
	// been reduced.
	ReducedCitations = 5
	ReducedSources   = 5

	// ContentPlaceholder replaces research text that was already delivered
	// in chunks.
	ContentPlaceholder = "[Content delivered in research_chunk events]"

	codeSerialization = "serialization_failed"
	codeTooLarge      = "payload_too_large"
)

// Tier records which rung of the fallback ladder produced a payload.
type Tier int

const (
	TierFull Tier = iota + 1
	TierReduced
	TierFailed
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierReduced:
		return "reduced"
	case TierFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reducer is implemented by payloads that know how to shrink themselves:
// the chunkable text replaced by ContentPlaceholder and list fields capped.
type Reducer interface {
	Reduced() any
}

// FailurePayload is the fixed shape emitted when a payload cannot be
// serialized within budget.
type FailurePayload struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	MaxBytes int    `json:"max_bytes"`
}

// BoundSerialize encodes v as JSON no larger than maxBytes. When the full
// encoding is too large and v is a Reducer, the reduced form is tried. When
// nothing fits, or encoding fails, a FailurePayload is returned instead. It
// never fails and never panics.
func BoundSerialize(v any, maxBytes int) (data json.RawMessage, tier Tier) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}

	defer func() {
		if r := recover(); r != nil {
			data, tier = failure(codeSerialization, fmt.Sprintf("payload serialization panicked: %v", r), maxBytes), TierFailed
		}
	}()

	full, err := json.Marshal(v)
	if err != nil {
		return failure(codeSerialization, "payload serialization failed: "+err.Error(), maxBytes), TierFailed
	}

	if len(full) <= maxBytes {
		return full, TierFull
	}

	reducer, ok := v.(Reducer)
	if !ok {
		return failure(codeTooLarge, fmt.Sprintf("payload of %d bytes exceeds limit", len(full)), maxBytes), TierFailed
	}

	reduced, err := json.Marshal(reducer.Reduced())
	if err != nil {
		return failure(codeSerialization, "payload serialization failed: "+err.Error(), maxBytes), TierFailed
	}

	if len(reduced) <= maxBytes {
		return reduced, TierReduced
	}

	return failure(codeTooLarge, fmt.Sprintf("payload of %d bytes exceeds limit after reduction", len(reduced)), maxBytes), TierFailed
}

func failure(code, message string, maxBytes int) json.RawMessage {
	data, err := json.Marshal(FailurePayload{
		Error:    code,
		Message:  message,
		MaxBytes: maxBytes,
	})
	if err != nil {
		return json.RawMessage(`{"error":"serialization_failed","message":"payload serialization failed","max_bytes":0}`)
	}

	return data
}
