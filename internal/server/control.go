package server

import (
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
	"github.com/fordward/relay/internal/robot"
)

// handleControl dispatches a `control` frame to the lease state
// machine in §4.3 and routes its LeaseEvent to the right audience:
// a broadcast to subscribers, or a reply to the requester alone.
func (s *Server) handleControl(client *Client, m map[string]any) {
	robotID := protocol.GetStringDefault(m, "fordward", "robotId", "robot_id")
	record, ok := s.Registry.GetRobot(robotID)
	if !ok {
		s.sendError(client, protocol.ErrRobotOffline, "")
		return
	}

	payload := protocol.Payload(m)
	action, _ := protocol.GetString(payload, "action")
	name, _ := protocol.GetString(payload, "clientName", "client_name")
	if name != "" {
		client.SetName(name)
	}
	requesterName := client.DisplayName()

	switch action {
	case "request":
		evt := record.RequestControl(client.ID, requesterName)
		s.routeLeaseEvent(client, robotID, evt)

	case "release":
		if evt, ok := record.ReleaseControl(client.ID); ok {
			s.broadcastLeaseEvent(robotID, evt)
		}
		// Non-owner release is a silent no-op: no broadcast, no reply.
		// The source server behaves this way and this spec preserves it.

	case "force":
		evt := record.ForceControl(client.ID, requesterName)
		s.routeLeaseEvent(client, robotID, evt)

	default:
		s.Logger.Debug("ignoring unknown control action", zap.String("action", action))
	}
}

// routeLeaseEvent sends a LeaseEvent to its proper audience: a
// broadcast for acquired/forced/released, or a requester-only reply
// for confirmed/denied.
func (s *Server) routeLeaseEvent(client *Client, robotID string, evt robot.LeaseEvent) {
	if evt.Broadcast {
		s.broadcastLeaseEvent(robotID, evt)
		return
	}

	switch evt.Kind {
	case "control_denied":
		// The source server reports this as an error frame, not an
		// event — preserved verbatim (§6 error codes, carries holder).
		s.sendToClient(client, protocol.ErrorFrame{
			Type: protocol.TypeError, Code: protocol.ErrControlDenied, Holder: evt.Holder,
		})
	case "control_confirmed":
		s.sendToClient(client, protocol.EventFrame{
			Type: protocol.TypeEvent,
			Payload: map[string]any{
				"kind": "control_confirmed", "robotId": robotID,
				"ownerClientId": evt.OwnerClientID, "ownerName": evt.OwnerName,
			},
		})
	}
}

// BroadcastLeaseEvent is the exported form used by internal/reaper,
// which only knows the server as a Broadcaster.
func (s *Server) BroadcastLeaseEvent(robotID string, evt robot.LeaseEvent) {
	s.broadcastLeaseEvent(robotID, evt)
}

// broadcastLeaseEvent fans a lease transition out to every subscriber
// of robotID — not to every operator, unlike robot lifecycle events.
func (s *Server) broadcastLeaseEvent(robotID string, evt robot.LeaseEvent) {
	payload := map[string]any{"kind": evt.Kind, "robotId": robotID}
	if evt.OwnerClientID != "" {
		payload["ownerClientId"] = evt.OwnerClientID
		payload["ownerName"] = evt.OwnerName
	}
	if evt.PreviousOwner != "" {
		payload["previousOwner"] = evt.PreviousOwner
	}
	if evt.Reason != "" {
		payload["reason"] = evt.Reason
	}

	frame := protocol.EventFrame{Type: protocol.TypeEvent, Payload: payload}
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode lease event", zap.Error(err))
		return
	}
	s.Hub.BroadcastToSubscribers(robotID, data)

	if s.Publisher != nil {
		_ = s.Publisher.PublishEvent(bgCtx, evt.Kind, payload)
	}
}

func (s *Server) sendError(client *Client, code, message string) {
	s.sendToClient(client, protocol.ErrorFrame{Type: protocol.TypeError, Code: code, Message: message})
}
