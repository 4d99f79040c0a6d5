package server

import (
	"errors"
	"runtime/debug"
	"time"

	"backend-gpslogger/internal/config"
	"backend-gpslogger/internal/gps"
	"backend-gpslogger/internal/health"
	"backend-gpslogger/internal/history"
	"backend-gpslogger/internal/metrics"
	"backend-gpslogger/internal/shared/geo"
	"backend-gpslogger/internal/stream"
	"backend-gpslogger/internal/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Joinville, SC. Only used to annotate fix logs.
var defaultArea = geo.BoundingBox{North: -26.2, South: -26.4, East: -48.7, West: -48.9}

var availableEndpoints = []string{"/ping", "/gps", "/GPS", "/locations", "/health", "/metrics", "/stream/ws/:deviceID"}

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	Log       zerolog.Logger
	Redis     *redis.Client
	GPS       *gps.Service
	Forwarder *webhook.Forwarder
	Stream    *stream.Hub
	Metrics   *metrics.Metrics

	started time.Time
}

func NewServer(cfg config.Config, redisClient *redis.Client, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "gps-logger",
		CaseSensitive:         true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error().Interface("panic", e).Bytes("stack", debug.Stack()).Str("path", c.Path()).Msg("Unhandled error")
		},
	}))
	app.Use(logger.New(logger.Config{Output: log}))

	ring := history.New[gps.Record](cfg.HistorySize)
	m := metrics.New(ring.Len)
	forwarder := webhook.New(webhook.Config{
		URL:      cfg.WebhookURL,
		Token:    cfg.WebhookToken,
		Timeout:  cfg.WebhookTimeout,
		OnResult: m.ForwardResult,
	}, log)
	hub := stream.NewHub(redisClient, log)

	s := &Server{
		App:       app,
		Cfg:       cfg,
		Log:       log,
		Redis:     redisClient,
		Forwarder: forwarder,
		Stream:    hub,
		Metrics:   m,
		GPS: gps.NewService(ring, forwarder, hub, gps.Options{
			Area:    defaultArea,
			Home:    geo.Point{Lat: cfg.HomeLat, Lon: cfg.HomeLon},
			Metrics: m,
		}, log),
		started: time.Now(),
	}

	registerRoutes(s)
	return s
}

// Close waits for in-flight webhook deliveries and stops the stream bridge.
func (s *Server) Close() {
	s.Forwarder.Wait()
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "pong", "timestamp": gps.FormatTimestamp(time.Now())})
	})

	s.App.Get("/health", func(c *fiber.Ctx) error {
		stats := health.Snapshot(s.started)
		return c.JSON(fiber.Map{
			"status":          "healthy",
			"uptime":          stats.Uptime,
			"locationsStored": s.GPS.Count(),
			"memory":          stats.Memory,
			"timestamp":       gps.FormatTimestamp(time.Now()),
		})
	})

	s.App.Get("/metrics", s.Metrics.Handler())

	gps.RegisterRoutes(s.App, s.GPS)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)

	s.App.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":              "Endpoint not found",
			"availableEndpoints": availableEndpoints,
		})
	})
}

// errorHandler answers any error that escapes a handler. Fiber errors keep
// their status; everything else is an internal failure.
func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code == fiber.StatusNotFound {
				return c.Status(fe.Code).JSON(fiber.Map{
					"error":              "Endpoint not found",
					"availableEndpoints": availableEndpoints,
				})
			}
			if fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
		}

		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Error processing request")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"message": err.Error(),
		})
	}
}
