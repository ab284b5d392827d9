package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/flowhive/flowhive/pkg/cmd"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/log"
	"github.com/flowhive/flowhive/pkg/scheduler"
)

const defaultPollIntervalSeconds = 30

func main() {
	command := &cli.Command{
		Name:                  "flowhive-scheduler",
		Usage:                 "Poll due schedules and publish workflow triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "poll-interval",
				Usage:   "Due-schedule poll interval in seconds",
				Value:   defaultPollIntervalSeconds,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses (when event-bus is kafka)",
				Value:   "",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				Value:   log.FormatText,
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
			}

			logger := log.NewLogger("flowhive-scheduler",
				command.String("log-level"), command.String("log-format")).
				With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowhive-scheduler",
				command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			trail := execlog.NewLogger(persistence, logger)

			sched := scheduler.NewScheduler(persistence, eventBus, trail, logger,
				scheduler.WithPollInterval(time.Duration(command.Int("poll-interval"))*time.Second))

			if err := sched.RegisterOutcomeHandlers(eventBus); err != nil {
				return fmt.Errorf("failed to register outcome handlers: %w", err)
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to event bus: %w", err)
			}

			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler...")

			return sched.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
