package sonar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
)

const doneMarker = "[DONE]"

var errStreamDone = errors.New("stream done")

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamResearch sends query with streaming enabled and hands each non-empty
// content delta to onDelta. Chunks that are not valid JSON are skipped. The
// stream ends at the [DONE] marker or when the body closes.
func (c *Client) StreamResearch(ctx context.Context, credential, query string, timeout time.Duration, onDelta func(string) error) error {
	if credential == "" {
		return &upstream.Error{Provider: providerName, Op: opStream, Reason: "API key is required", Err: upstream.ErrMissingCredential}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []upstream.ChatMessage{{Role: "user", Content: query}},
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransport(opStream, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		c.logger.ErrorContext(ctx, "streaming research request rejected",
			"status", resp.StatusCode,
			"reason", upstream.ReasonFromBody(respBody),
		)

		statusErr := upstream.StatusError(providerName, opStream, resp.StatusCode, respBody)
		statusErr.Reason = fmt.Sprintf("API request failed with status %d", resp.StatusCode)

		return statusErr
	}

	deltas := 0

	err = parseEvents(resp.Body, func(data string) error {
		if data == doneMarker {
			return errStreamDone
		}

		var chunk streamChunk
		if json.Unmarshal([]byte(data), &chunk) != nil || len(chunk.Choices) == 0 {
			return nil
		}

		content := chunk.Choices[0].Delta.Content
		if content == "" {
			return nil
		}

		deltas++

		return onDelta(content)
	})

	switch {
	case err == nil, errors.Is(err, errStreamDone):
		c.logger.InfoContext(ctx, "streaming research completed", "deltas", deltas)

		return nil
	default:
		var readErr *streamReadError
		if errors.As(err, &readErr) {
			return classifyTransport(opStream, readErr.err)
		}

		return err
	}
}

type streamReadError struct {
	err error
}

func (e *streamReadError) Error() string { return e.err.Error() }

func (e *streamReadError) Unwrap() error { return e.err }

// parseEvents reads server-sent events from r and calls fn with the joined
// data lines of each event. Read failures are wrapped in *streamReadError so
// callers can tell them apart from errors returned by fn.
func parseEvents(r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 512*1024)

	var lines []string

	flush := func() error {
		if len(lines) == 0 {
			return nil
		}

		data := strings.Join(lines, "\n")
		lines = lines[:0]

		return fn(data)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		return &streamReadError{err: err}
	}

	return flush()
}
