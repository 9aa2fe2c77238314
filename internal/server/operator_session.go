package server

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
)

// runOperatorSession owns one /ui connection end to end: accept,
// read loop, and close cleanup (lease release + hub unregister).
// Grounded on the teacher's websocket.go readPump/writePump pair.
func (s *Server) runOperatorSession(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	client := NewClient(newClientID(), conn)
	s.Hub.Register(client)
	go writePump(conn, client.Send, s.Cfg.PingInterval, s.Logger)

	s.sendClientWelcome(client)

	defer func() {
		s.releaseAllLeases(client.ID)
		s.Hub.Unregister(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		typ, m, err := s.codec.Decode(data)
		if err != nil {
			s.Logger.Debug("dropping malformed operator frame", zap.Error(err))
			continue
		}

		switch typ {
		case protocol.TypeSubscribe:
			s.handleSubscribe(client, m)
		case protocol.TypeUnsubscribe:
			s.handleUnsubscribe(client, m)
		case protocol.TypeControl:
			s.handleControl(client, m)
		case protocol.TypeCommand:
			s.handleCommand(client, m)
		case protocol.TypePing:
			s.handlePing(client)
		default:
			s.Logger.Debug("ignoring unknown operator frame type", zap.String("type", typ))
		}
	}
}

func (s *Server) sendClientWelcome(client *Client) {
	snaps := s.Registry.ListRobots()
	robots := make([]any, 0, len(snaps))
	for _, snap := range snaps {
		robots = append(robots, map[string]any{
			"robotId":    snap.RobotID,
			"online":     snap.Online,
			"lastSeen":   snap.LastSeenAt.UnixMilli(),
			"mode":       snap.Telemetry.Mode,
			"hasControl": snap.Lease.OwnerClientID != nil,
		})
	}
	welcome := protocol.ClientWelcome{Type: protocol.TypeWelcome, ClientID: client.ID, Robots: robots}
	s.sendToClient(client, welcome)
}

// handleSubscribe adds robotID to the client's subscriptions and
// immediately pushes a `state` snapshot, per §4.6.
func (s *Server) handleSubscribe(client *Client, m map[string]any) {
	robotID := protocol.GetStringDefault(m, "fordward", "robotId", "robot_id")
	name, _ := protocol.GetString(m, "clientName", "client_name")
	client.Subscribe(robotID, name)
	s.pushStateTo(client, robotID)
}

func (s *Server) handleUnsubscribe(client *Client, m map[string]any) {
	robotID := protocol.GetStringDefault(m, "fordward", "robotId", "robot_id")
	client.Unsubscribe(robotID)
}

func (s *Server) handlePing(client *Client) {
	pong := protocol.PongFrame{Type: protocol.TypePong, Timestamp: time.Now().UnixMilli()}
	s.sendToClient(client, pong)
}

// pushStateTo sends the current record projection for robotID, or an
// offline placeholder if the robot isn't registered.
func (s *Server) pushStateTo(client *Client, robotID string) {
	record, ok := s.Registry.GetRobot(robotID)
	if !ok {
		s.sendToClient(client, protocol.StateFrame{
			Type:    protocol.TypeState,
			RobotID: robotID,
			Online:  false,
			Mode:    "unknown",
		})
		return
	}
	telemetry, lease := record.Snapshot()
	s.sendToClient(client, protocol.StateFrame{
		Type:    protocol.TypeState,
		RobotID: robotID,
		Online:  true,
		Mode:    telemetry.Mode,
		Pose:    telemetry.Pose,
		Battery: telemetry.Battery,
		Nav:     telemetry.Nav,
		Maps:    telemetry.Maps,
		Pois:    telemetry.Pois,
		Control: lease,
	})
}

// releaseAllLeases implements the owner-disconnect transition across
// every robot this client may have held control of.
func (s *Server) releaseAllLeases(clientID string) {
	for _, record := range s.Registry.Records() {
		if evt, ok := record.OwnerDisconnect(clientID); ok {
			s.broadcastLeaseEvent(record.ID, evt)
		}
	}
}

func (s *Server) sendToClient(client *Client, frame any) {
	data, err := s.codec.Encode(frame)
	if err != nil {
		s.Logger.Error("failed to encode client frame", zap.Error(err))
		return
	}
	s.Hub.SendToClient(client, data)
}
