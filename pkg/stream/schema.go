package stream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// FrameSchema is the JSON Schema every stream line conforms to.
const FrameSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["progress", "data", "research_chunk", "error", "complete"]},
    "step": {"enum": ["video_details", "analysis", "research"]},
    "message": {"type": "string"},
    "progress": {"type": "integer", "minimum": 0, "maximum": 100},
    "data": {}
  },
  "additionalProperties": false,
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "progress"}}},
      "then": {"required": ["step", "message", "progress"]}
    },
    {
      "if": {"properties": {"type": {"const": "data"}}},
      "then": {"required": ["step", "data", "progress"]}
    },
    {
      "if": {"properties": {"type": {"const": "research_chunk"}}},
      "then": {
        "required": ["data"],
        "properties": {
          "data": {
            "type": "object",
            "required": ["content", "chunk_index", "is_final", "total_length", "total_chunks"],
            "properties": {
              "content": {"type": "string"},
              "chunk_index": {"type": "integer", "minimum": 0},
              "is_final": {"type": "boolean"},
              "total_length": {"type": "integer", "minimum": 0},
              "total_chunks": {"type": "integer", "minimum": 1}
            }
          }
        }
      }
    },
    {
      "if": {"properties": {"type": {"const": "error"}}},
      "then": {"required": ["message"]}
    },
    {
      "if": {"properties": {"type": {"const": "complete"}}},
      "then": {"required": ["data", "progress"]}
    }
  ]
}`

var frameSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(FrameSchema))
})

// ValidateFrame checks one raw stream line against FrameSchema.
func ValidateFrame(line []byte) error {
	schema, err := frameSchema()
	if err != nil {
		return fmt.Errorf("failed to compile frame schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(line))
	if err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("frame validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
