package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxFrameBytes = 4 << 20

// Decoder reads events from a newline-delimited stream.
type Decoder struct {
	scanner  *bufio.Scanner
	validate bool
}

// NewDecoder returns a decoder over r. When validate is set every line is
// checked against FrameSchema before decoding.
func NewDecoder(r io.Reader, validate bool) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	return &Decoder{scanner: scanner, validate: validate}
}

// Next returns the next event, or io.EOF once the stream ends. Blank lines
// are skipped.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if d.validate {
			if err := ValidateFrame(line); err != nil {
				return Event{}, err
			}
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return Event{}, fmt.Errorf("failed to decode frame: %w", err)
		}

		return event, nil
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}

	return Event{}, io.EOF
}
