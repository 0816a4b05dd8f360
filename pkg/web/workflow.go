package web

import (
	"bufio"
	"context"
	"errors"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/stream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/workflow"
	"github.com/gofiber/fiber/v3"
)

// RunWorkflow streams one workflow run as newline-delimited JSON events. The
// status is always 200 once the body parsed; failures travel as error events.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req workflow.Request
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
	c.Status(fiber.StatusOK)

	// The body writer runs after the handler returns, so the run must not
	// depend on the request context.
	ctx := context.Background()
	logger := h.logger

	c.Response().SetBodyStreamWriter(func(w *bufio.Writer) {
		err := h.orchestrator.Run(ctx, req, stream.NewWriter(w))

		switch {
		case err == nil:
		case errors.Is(err, stream.ErrClosed):
			logger.InfoContext(ctx, "Workflow client disconnected", "error", err)
		default:
			logger.DebugContext(ctx, "Workflow ended with error event", "error", err)
		}
	})

	return nil
}
