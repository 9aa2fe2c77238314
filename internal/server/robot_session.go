package server

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
	"github.com/fordward/relay/internal/robot"
)

var defaultCapabilities = []string{"pose", "battery", "mode"}

// runRobotSession owns one /robot connection end to end: read loop,
// registration, telemetry/command-result handling, and close cleanup.
// Grounded on the teacher's websocket.go readPump, generalized to the
// robot-facing endpoint which has no auth frame and a different
// frame-type table.
func (s *Server) runRobotSession(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var record *robot.RobotRecord
	defer func() {
		if record == nil {
			conn.Close()
			return
		}
		if s.Registry.RemoveRobot(record.ID, record) {
			record.Close()
			s.broadcastRobotOffline(record.ID, "disconnected")
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if record != nil {
			record.Touch()
		}

		typ, m, err := s.codec.Decode(data)
		if err != nil {
			s.Logger.Debug("dropping malformed robot frame", zap.Error(err))
			continue
		}

		switch typ {
		case protocol.TypeHello, protocol.TypeRegister:
			record = s.handleRobotHello(conn, m)
		case protocol.TypeTelemetry:
			if record != nil {
				s.handleTelemetry(record, m)
			}
		case protocol.TypeCommandResult:
			if record != nil {
				s.handleCommandResult(record, m)
			}
		default:
			s.Logger.Debug("ignoring unknown robot frame type", zap.String("type", typ))
		}
	}
}

// handleRobotHello upserts the registry, closing any prior session
// for the same id before the new one becomes visible, starts the
// write pump, replies with welcome, and broadcasts robot_online.
func (s *Server) handleRobotHello(conn *websocket.Conn, m map[string]any) *robot.RobotRecord {
	id := protocol.GetStringDefault(m, "fordward", "robotId", "robot_id")
	version := protocol.GetStringDefault(m, "0.0.0", "version")
	capabilities := protocol.GetStringSlice(m, "capabilities")
	if capabilities == nil {
		capabilities = defaultCapabilities
	}

	prev := s.Registry.UpsertRobot(id, conn, version, capabilities)
	if prev != nil {
		s.Logger.Info("robot reconnected, superseding stale session", zap.String("robot_id", id))
	}
	record, _ := s.Registry.GetRobot(id)

	go writePump(conn, record.Send, s.Cfg.PingInterval, s.Logger)

	welcome := protocol.RobotWelcome{
		Type:       protocol.TypeWelcome,
		ServerTime: time.Now().UnixMilli(),
		Safety: protocol.SafetyConfig{
			TelemetryRateHz:    2,
			MaxLinearVelocity:  s.Cfg.MaxLinearVelocity,
			MaxAngularVelocity: s.Cfg.MaxAngularVelocity,
		},
	}
	s.sendToRobot(record, welcome)

	s.broadcastRobotOnline(id)
	return record
}

func (s *Server) broadcastRobotOnline(robotID string) {
	s.broadcastEvent("robot_online", map[string]any{"robotId": robotID})
	if s.Publisher != nil {
		_ = s.Publisher.PublishEvent(bgCtx, "robot_online", map[string]any{"robotId": robotID})
	}
}

// BroadcastRobotOffline is the exported form used by internal/reaper,
// which only knows the server as a Broadcaster.
func (s *Server) BroadcastRobotOffline(robotID, reason string) {
	s.broadcastRobotOffline(robotID, reason)
}

func (s *Server) broadcastRobotOffline(robotID, reason string) {
	s.broadcastEvent("robot_offline", map[string]any{"robotId": robotID, "reason": reason})
	if s.Publisher != nil {
		_ = s.Publisher.PublishEvent(bgCtx, "robot_offline", map[string]any{"robotId": robotID, "reason": reason})
	}
}

// BroadcastShutdown notifies every connected operator that the relay
// is going down, per §5's graceful shutdown sequence.
func (s *Server) BroadcastShutdown() {
	s.broadcastEvent("server_shutdown", map[string]any{})
}

func (s *Server) broadcastEvent(kind string, payload map[string]any) {
	payload["kind"] = kind
	frame := protocol.EventFrame{Type: protocol.TypeEvent, Payload: payload}
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode event frame", zap.Error(err))
		return
	}
	s.Hub.BroadcastToAll(data)
}

// handleTelemetry updates liveness and the telemetry snapshot, then
// pushes a `state` frame to subscribers with the lease projection
// observed atomically alongside it (invariant 5).
func (s *Server) handleTelemetry(record *robot.RobotRecord, m map[string]any) {
	record.Touch()
	telemetry := protocol.TelemetryFromFrame(m)
	telemetry, lease := record.UpdateTelemetry(telemetry)

	state := protocol.StateFrame{
		Type:    protocol.TypeState,
		RobotID: record.ID,
		Online:  true,
		Mode:    telemetry.Mode,
		Pose:    telemetry.Pose,
		Battery: telemetry.Battery,
		Nav:     telemetry.Nav,
		Maps:    telemetry.Maps,
		Pois:    telemetry.Pois,
		Control: lease,
	}
	data, err := s.codec.Encode(state)
	if err != nil {
		s.Logger.Error("failed to encode state frame", zap.Error(err))
		return
	}
	s.Hub.BroadcastToSubscribers(record.ID, data)

	if s.Publisher != nil {
		_ = s.Publisher.PublishTelemetry(bgCtx, record.ID, telemetry)
	}
}

// handleCommandResult relays the robot's result as an `event` of kind
// command_result to subscribers of this robot only, not every operator
// (contrast broadcastEvent's robot_online/robot_offline, which are
// relay-wide lifecycle notices).
func (s *Server) handleCommandResult(record *robot.RobotRecord, m map[string]any) {
	payload := map[string]any{
		"robotId": record.ID,
		"command": m["command"],
		"success": m["success"],
		"message": m["message"],
		"kind":    "command_result",
	}
	if ts, ok := m["timestamp"]; ok {
		payload["timestamp"] = ts
	}
	frame := protocol.EventFrame{Type: protocol.TypeEvent, Payload: payload}
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode event frame", zap.Error(err))
		return
	}
	s.Hub.BroadcastToSubscribers(record.ID, data)

	if s.Publisher != nil {
		_ = s.Publisher.PublishCommandResult(bgCtx, record.ID, payload)
	}
}

func (s *Server) sendToRobot(record *robot.RobotRecord, frame any) {
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode robot frame", zap.Error(err))
		return
	}
	if record.TrySend(data) {
		s.Logger.Warn("dropping frame: robot outbound buffer full", zap.String("robot_id", record.ID))
	}
}
