// Package server implements the relay's two WebSocket endpoints
// (/robot and /ui), the operator broadcast hub, and the command
// pipeline that bridges them. Structurally this is the teacher's
// server package (Hub, Client, per-connection read/write pumps)
// generalized from a single authenticated endpoint to the spec's two
// unauthenticated, identity-by-ClientId endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
	"github.com/fordward/relay/internal/robot"
	"github.com/fordward/relay/internal/safety"
)

// EventPublisher mirrors telemetry, lifecycle, and command-result
// events to a downstream analytics sink. Implemented by
// internal/bridge.RedisPublisher; nil-safe here so the relay runs in
// degraded mode when Redis is unreachable at startup.
type EventPublisher interface {
	PublishTelemetry(ctx context.Context, robotID string, t protocol.Telemetry) error
	PublishEvent(ctx context.Context, kind string, payload map[string]any) error
	PublishCommandResult(ctx context.Context, robotID string, payload map[string]any) error
}

// Config bundles the built-in constants §6 fixes, threaded through
// rather than re-declared, so tests can shrink timeouts.
type Config struct {
	MaxLinearVelocity    float64
	MaxAngularVelocity   float64
	ControlIdleTimeout   time.Duration
	RobotTimeout         time.Duration
	PingInterval         time.Duration
}

// Server holds every dependency the two endpoints and the reaper
// share: the registry, the operator hub, the velocity limiter, and
// the optional telemetry mirror.
type Server struct {
	Registry   *robot.Registry
	Hub        *Hub
	VelLimiter *safety.VelocityLimiter
	Cfg        Config
	Logger     *zap.Logger
	Publisher  EventPublisher

	upgrader websocket.Upgrader
	codec    *protocol.Codec
}

// bgCtx is used for the best-effort telemetry/event mirror, which has
// no per-request context of its own to inherit.
var bgCtx = context.Background()

func New(reg *robot.Registry, hub *Hub, vel *safety.VelocityLimiter, cfg Config, logger *zap.Logger, pub EventPublisher) *Server {
	return &Server{
		Registry:   reg,
		Hub:        hub,
		VelLimiter: vel,
		Cfg:        cfg,
		Logger:     logger,
		Publisher:  pub,
		codec:      protocol.NewCodec(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}
