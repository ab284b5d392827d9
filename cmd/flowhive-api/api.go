// Package main provides the HTTP API server for workflow management.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/flowhive/flowhive/pkg/approval"
	"github.com/flowhive/flowhive/pkg/dispatcher"
	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/scheduler"
	"github.com/flowhive/flowhive/pkg/services"
	"github.com/flowhive/flowhive/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	redisURL    string
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.Persistence, eventBus eventbus.EventBus, redisURL string) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	trail := execlog.NewLogger(a.persistence, a.logger)
	sched := scheduler.NewScheduler(a.persistence, a.eventBus, trail, a.logger)

	var redisClient *redis.Client

	if a.redisURL != "" {
		opts, err := redis.ParseURL(a.redisURL)
		if err != nil {
			panic(err)
		}

		redisClient = redis.NewClient(opts)
	}

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, sched, a.validate),
		services.NewTemplate(a.persistence),
		dispatcher.NewDispatcher(a.persistence, a.eventBus, trail, a.logger, redisClient),
		approval.NewService(a.persistence, a.eventBus, trail, a.logger),
		a.persistence,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
