// Package bridge mirrors relay state to Redis Streams for downstream
// analytics — telemetry, lifecycle/lease events, and command results.
// This is a best-effort, write-only side channel: nothing in the
// relay's own invariants depends on it, and its unavailability at
// startup or mid-session degrades to a silent no-op (see
// server.EventPublisher's nil-safety). Grounded on the teacher's
// redis_publisher.go, generalized from the adapter package's
// SensorData/Command types to this relay's Telemetry/event payloads,
// and switched from json.Marshal to msgpack for the stream payload
// encoding — the teacher already declares msgpack, previously spent
// on the wire codec this relay replaced with plain JSON text frames.
package bridge

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
)

const (
	telemetryStream = "relay:telemetry"
	eventStream     = "relay:events"
	commandStream   = "relay:command_results"

	telemetryMaxLen = 100000
	eventMaxLen     = 50000
	commandMaxLen   = 50000
)

type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(redisURL string, logger *zap.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("connected to redis telemetry mirror")
	return &RedisPublisher{client: client, logger: logger}, nil
}

// PublishTelemetry mirrors a robot's latest telemetry snapshot.
func (r *RedisPublisher) PublishTelemetry(ctx context.Context, robotID string, t protocol.Telemetry) error {
	payload, err := msgpack.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: telemetryStream,
		MaxLen: telemetryMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"robot_id": robotID,
			"payload":  payload,
		},
	}).Err()
}

// PublishEvent mirrors a lifecycle or lease-transition event (e.g.
// robot_online, control_acquired, control_released).
func (r *RedisPublisher) PublishEvent(ctx context.Context, kind string, payload map[string]any) error {
	encoded, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: eventMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":    kind,
			"payload": encoded,
		},
	}).Err()
}

// PublishCommandResult mirrors a robot's command_result report.
func (r *RedisPublisher) PublishCommandResult(ctx context.Context, robotID string, payload map[string]any) error {
	encoded, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: commandStream,
		MaxLen: commandMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"robot_id": robotID,
			"payload":  encoded,
		},
	}).Err()
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
