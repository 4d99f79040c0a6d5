package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-gpslogger/internal/config"
	"backend-gpslogger/internal/db"
	"backend-gpslogger/internal/logging"
	"backend-gpslogger/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig   func() (config.Config, error)
	newLogger    func(config.Config) zerolog.Logger
	connectRedis func(config.Config) (*redis.Client, error)
	notify       func(chan<- os.Signal, ...os.Signal)
	run          func(context.Context, config.Config, *redis.Client, zerolog.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig: config.Load,
		newLogger: func(cfg config.Config) zerolog.Logger {
			return logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
		},
		connectRedis: db.ConnectRedis,
		notify:       signal.Notify,
		run:          Run,
	}
}

func realMain(deps mainDeps) {
	cfg, err := deps.loadConfig()
	log := deps.newLogger(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return
	}

	rdb, err := deps.connectRedis(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, stream bridge disabled")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, rdb, log, signals, nil); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, rdb *redis.Client, log zerolog.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, rdb, log)

	if listen == nil {
		listen = defaultListen
	}

	addr := cfg.ListenAddr()
	log.Info().
		Str("addr", addr).
		Bool("webhook", srv.Forwarder.Enabled()).
		Bool("redis", rdb != nil).
		Int("history_capacity", srv.GPS.Capacity()).
		Msg("GPS logger listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, addr)
	}()

	select {
	case sig := <-signals:
		log.Info().Interface("signal", sig).Msg("Shutting down")
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
