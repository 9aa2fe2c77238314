package server

import (
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
	"github.com/fordward/relay/internal/robot"
)

// motionKinds gates which command kinds require lease ownership, per
// §4.4 step 2.
var motionKinds = map[string]bool{
	"teleop": true, "goto_poi": true, "dock": true, "navigate": true,
}

var validModes = map[string]bool{"idle": true, "slam": true, "nav": true, "localization": true}

// handleCommand implements the three-step command pipeline of §4.4:
// existence, motion-kind authorisation, then per-kind validation and
// translation into the robot-bound frame shape.
func (s *Server) handleCommand(client *Client, m map[string]any) {
	robotID := protocol.GetStringDefault(m, "fordward", "robotId", "robot_id")
	record, ok := s.Registry.GetRobot(robotID)
	if !ok {
		s.sendError(client, protocol.ErrRobotOffline, "")
		return
	}

	payload := protocol.Payload(m)
	kind, _ := protocol.GetString(payload, "kind")

	if motionKinds[kind] {
		if !record.HasControl(client.ID) {
			s.sendError(client, protocol.ErrNoControl, "")
			return
		}
		record.RefreshCommandTime()
	}

	var forward map[string]any
	switch kind {
	case "teleop":
		res := s.VelLimiter.Limit(protocol.GetFloat(payload, "linear_x"), protocol.GetFloat(payload, "angular_z"))
		forward = protocol.NewCommandFrame("teleop", map[string]any{
			"linear_x": res.LinearX, "angular_z": res.AngularZ,
		})

	case "stop":
		forward = protocol.NewCommandFrame("stop", nil)

	case "set_mode":
		mode, _ := protocol.GetString(payload, "mode")
		if !validModes[mode] {
			s.sendError(client, protocol.ErrInvalidMode, "")
			return
		}
		forward = protocol.NewCommandFrame("set_mode", map[string]any{"mode": mode})

	case "load_map":
		name, ok := protocol.GetString(payload, "mapName", "map_name")
		if !ok {
			s.sendError(client, protocol.ErrMissingParam, "")
			return
		}
		forward = protocol.NewCommandFrame("load_map", map[string]any{"map_name": name})

	case "save_map":
		name, ok := protocol.GetString(payload, "mapName", "map_name")
		if !ok {
			s.sendError(client, protocol.ErrMissingParam, "")
			return
		}
		forward = protocol.NewCommandFrame("stop_slam", map[string]any{"map_name": name})

	case "goto_poi":
		poiID, ok := protocol.GetString(payload, "poiId", "poi_id")
		if !ok {
			s.sendError(client, protocol.ErrMissingParam, "")
			return
		}
		telemetry, _ := record.Snapshot()
		if len(telemetry.Pois) > 0 && !poiKnown(telemetry.Pois, poiID) {
			s.sendToClient(client, protocol.ErrorFrame{
				Type: protocol.TypeError, Code: protocol.ErrUnknownPoi,
				AvailablePois: telemetry.Pois,
			})
			return
		}
		forward = protocol.NewCommandFrame("go_to_poi", map[string]any{"poi_id": poiID})

	case "cancel_nav":
		forward = protocol.NewCommandFrame("cancel_nav", nil)

	case "start_slam":
		forward = protocol.NewCommandFrame("start_slam", nil)

	case "restart":
		forward = protocol.NewCommandFrame("restart", nil)

	default:
		s.sendError(client, protocol.ErrUnknownCommand, "")
		return
	}

	s.deliverCommand(record, forward)
}

// poiKnown matches a requested POI id against either the "id" or
// "name" field of each catalogue entry.
func poiKnown(pois []any, id string) bool {
	for _, p := range pois {
		entry, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := protocol.GetString(entry, "id"); ok && v == id {
			return true
		}
		if v, ok := protocol.GetString(entry, "name"); ok && v == id {
			return true
		}
	}
	return false
}

// deliverCommand forwards a validated command frame to the robot only
// while its socket is open; a closed session drops it silently, per
// §4.4's "otherwise the command is dropped silently" rule — no log,
// since this is the expected shape of a robot that is about to be
// reaped, not an operational fault.
func (s *Server) deliverCommand(record *robot.RobotRecord, frame map[string]any) {
	if !record.IsOpen() {
		return
	}
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode command frame", zap.Error(err))
		return
	}
	if record.TrySend(data) {
		s.Logger.Warn("dropping command: robot outbound buffer full", zap.String("robot_id", record.ID))
	}
}
