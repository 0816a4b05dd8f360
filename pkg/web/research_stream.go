package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/gofiber/fiber/v3"
)

// researchFrame is one relayed research event. Exactly one field is set.
type researchFrame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResearchStream relays a streaming research answer as server-sent events.
func (h *APIHandlers) ResearchStream(c fiber.Ctx) error {
	var req ResearchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.researchCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, "API key is required")
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Query is required")
	}

	return h.relayResearch(c, key, req.Query)
}

func (h *APIHandlers) researchStreamStep(c fiber.Ctx, req StepRequest) error {
	query := strings.TrimSpace(req.ResearchQuery)
	if query == "" {
		return badRequest(c, "Research query is required")
	}

	key, ok := h.researchCredentials.Resolve("")
	if !ok {
		return unauthorized(c, msgResearchKeyRequired)
	}

	return h.relayResearch(c, key, query)
}

// relayResearch answers 200 and streams the research deltas. Upstream
// failures after that point travel as an error frame.
func (h *APIHandlers) relayResearch(c fiber.Ctx, key, query string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
	c.Status(fiber.StatusOK)

	// The body writer outlives the handler, as in RunWorkflow.
	ctx := context.Background()
	logger := h.logger
	researcher := h.researcher
	timeout := h.researchTimeout

	c.Response().SetBodyStreamWriter(func(w *bufio.Writer) {
		err := researcher.StreamResearch(ctx, key, query, timeout, func(delta string) error {
			return writeFrame(w, researchFrame{Content: delta})
		})

		var writeErr *frameWriteError

		switch {
		case err == nil:
			err = writeFrame(w, researchFrame{Done: true})
		case errors.As(err, &writeErr):
		default:
			logger.ErrorContext(ctx, "Streaming research failed", "error", err)
			err = writeFrame(w, researchFrame{Error: upstream.Message(err)})
		}

		if err != nil {
			logger.InfoContext(ctx, "Research stream client disconnected", "error", err)
		}
	})

	return nil
}

type frameWriteError struct {
	err error
}

func (e *frameWriteError) Error() string { return "failed to write research frame: " + e.err.Error() }

func (e *frameWriteError) Unwrap() error { return e.err }

func writeFrame(w *bufio.Writer, frame researchFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode research frame: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return &frameWriteError{err: err}
	}

	if err := w.Flush(); err != nil {
		return &frameWriteError{err: err}
	}

	return nil
}
