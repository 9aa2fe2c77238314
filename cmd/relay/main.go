// Command relay starts the robot/operator WebSocket relay: it wires
// the registry, the operator hub, the command pipeline and the two
// background reapers, then serves both WebSocket endpoints and the
// read-only HTTP surface until a termination signal arrives.
// Grounded on the teacher's cmd/gateway/main.go — a config → logger
// → bridge → registry → hub → safety → server → reaper → HTTP →
// signal-driven shutdown sequence,
// generalized from a single mock-adapter robot to the relay's
// many-robot, many-operator session model.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fordward/relay/internal/bridge"
	"github.com/fordward/relay/internal/config"
	"github.com/fordward/relay/internal/httpapi"
	mw "github.com/fordward/relay/internal/middleware"
	"github.com/fordward/relay/internal/reaper"
	"github.com/fordward/relay/internal/robot"
	"github.com/fordward/relay/internal/safety"
	"github.com/fordward/relay/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("starting relay", zap.Int("port", cfg.Server.Port))

	var publisher *bridge.RedisPublisher
	if cfg.Redis.URL != "" {
		publisher, err = bridge.NewRedisPublisher(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("redis telemetry mirror unavailable, running without it", zap.Error(err))
			publisher = nil
		}
	}

	registry := robot.NewRegistry()
	hub := server.NewHub(logger)
	go hub.Run()

	velLimiter := safety.NewVelocityLimiter(cfg.Safety.MaxLinearVelocity, cfg.Safety.MaxAngularVelocity)

	srvCfg := server.Config{
		MaxLinearVelocity:  cfg.Safety.MaxLinearVelocity,
		MaxAngularVelocity: cfg.Safety.MaxAngularVelocity,
		ControlIdleTimeout: cfg.Safety.ControlIdleTimeout(),
		RobotTimeout:       cfg.Safety.RobotTimeout(),
		PingInterval:       cfg.Safety.PingInterval(),
	}

	var eventPublisher server.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}
	relay := server.New(registry, hub, velLimiter, srvCfg, logger, eventPublisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reap := reaper.New(registry, relay, logger,
		cfg.Safety.RobotTimeout(), cfg.Safety.ControlIdleTimeout(),
		cfg.Reaper.StaleInterval(), cfg.Reaper.IdleInterval())
	go reap.Run(ctx)

	api := httpapi.New(registry, hub, logger, "relay")

	mux := http.NewServeMux()
	mux.HandleFunc("/robot", relay.HandleRobot)
	mux.HandleFunc("/ui", relay.HandleUI)
	mux.Handle("/", api.Router())

	rateLimiter := mw.NewRateLimiter(240, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      rateLimiter.Middleware(mw.LoggingMiddleware(logger)(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("relay listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	relay.BroadcastShutdown()
	cancel()

	if publisher != nil {
		_ = publisher.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("relay stopped")
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
