package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/flowhive/flowhive/pkg/cmd"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/execution"
	"github.com/flowhive/flowhive/pkg/expression"
	"github.com/flowhive/flowhive/pkg/log"
	"github.com/flowhive/flowhive/pkg/notify"
	"github.com/flowhive/flowhive/pkg/scheduler"
	"github.com/flowhive/flowhive/pkg/template"
	trc "github.com/flowhive/flowhive/pkg/tracer"
	"github.com/flowhive/flowhive/pkg/worker"
)

func main() {
	command := &cli.Command{
		Name:                  "flowhive-worker",
		Usage:                 "Start workers to execute workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
			tracerProvider, err := trc.InitTracer(ctx, "flowhive-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			logger := log.NewLogger("flowhive-worker",
				command.String("log-level"), command.String("log-format")).
				With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing worker")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowhive-worker",
				command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			trail := execlog.NewLogger(persistence, logger)

			executor := execution.NewExecutor(execution.Config{
				Expressions: expression.NewEngine(),
				Templates:   template.NewResolver(persistence, template.SystemTemplates()),
				Sender:      notify.NewLogSender(logger),
				Records:     notify.NewMemoryRecords(),
				Approvals:   persistence,
				Trail:       trail,
				Publisher:   eventBus,
				Tracer:      tracerProvider.Tracer("execution"),
				Logger:      logger,
				WorkerID:    workerID,
			})

			sched := scheduler.NewScheduler(persistence, eventBus, trail, logger)

			if err := worker.NewWorker(persistence, executor, sched, eventBus, logger, workerID).Start(ctx); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down worker...")

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
