// Package cmd holds construction helpers shared by the command entry points.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/channels/gochannel"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/channels/kafka"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

const (
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// NewEventBus creates the lifecycle event bus for provider. brokers is only
// read for kafka.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case EventBusKafka:
		pub, sub, err := kafka.CreateChannel(wmLogger, brokers, "videoresearch")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case EventBusGoChannel, "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
