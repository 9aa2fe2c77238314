package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 65536
)

// newClientID produces a ClientId with at least 6 hex characters,
// replacing the teacher's timestamp-plus-pseudo-random scheme (which
// its own comment flags as not cryptographically random) with
// google/uuid, a dependency the teacher already declares.
func newClientID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// writePump drains send onto conn, injecting a ping every interval.
// Shared by both endpoints — the teacher's Client and this relay's
// RobotRecord both expose a plain chan []byte outbound queue.
func writePump(conn *websocket.Conn, send <-chan []byte, pingInterval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleRobot upgrades /robot connections and runs the robot session
// read loop until the socket closes.
func (s *Server) HandleRobot(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("robot upgrade failed", zap.Error(err))
		return
	}
	s.runRobotSession(conn)
}

// HandleUI upgrades /ui connections and runs the operator session
// read loop until the socket closes.
func (s *Server) HandleUI(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("operator upgrade failed", zap.Error(err))
		return
	}
	s.runOperatorSession(conn)
}
