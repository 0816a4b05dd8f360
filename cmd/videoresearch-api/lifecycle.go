package main

import (
	"context"
	"log/slog"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/eventbus"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/events"
)

// subscribeLifecycle logs every workflow run lifecycle event.
func subscribeLifecycle(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	for _, eventType := range []events.EventType{
		events.RunStartedEvent,
		events.RunCompletedEvent,
		events.RunFailedEvent,
		events.RunAbortedEvent,
	} {
		if err := bus.Handle(eventType, lifecycleLogger(logger)); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}

func lifecycleLogger(logger *slog.Logger) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		switch e := event.(type) {
		case *events.RunStarted:
			logger.InfoContext(ctx, "Workflow run started", "run_id", e.RunID, "index_id", e.IndexID, "video_id", e.VideoID)
		case *events.RunCompleted:
			logger.InfoContext(ctx, "Workflow run completed",
				"run_id", e.RunID,
				"duration", e.Duration,
				"research_chunks", e.ResearchChunks,
				"payload_tier", e.PayloadTier,
			)
		case *events.RunFailed:
			logger.WarnContext(ctx, "Workflow run failed", "run_id", e.RunID, "step", e.Step, "reason", e.Reason)
		case *events.RunAborted:
			logger.InfoContext(ctx, "Workflow run aborted by client", "run_id", e.RunID, "step", e.Step)
		default:
			logger.WarnContext(ctx, "Unknown lifecycle event", "event", event)
		}

		return nil
	}
}
