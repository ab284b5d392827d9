package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/flowhive/flowhive/pkg/channels/gochannel"
	"github.com/flowhive/flowhive/pkg/channels/kafka"
	"github.com/flowhive/flowhive/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. Kafka is the
// production transport and needs a broker list; gochannel is in-process and
// suited to local runs.
func NewEventBus(provider, serviceName, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, serviceName, kafkaBrokers)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
