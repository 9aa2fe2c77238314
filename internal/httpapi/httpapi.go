// Package httpapi exposes the relay's read-only HTTP surface: a root
// status page, a health check, and the robot listing/detail
// endpoints of §6. Routed with go-chi/chi/v5, sourced from the rest
// of the retrieval pack since the teacher's own HTTP handler
// (internal/api) is built on gin against an inconsistent module path.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fordward/relay/internal/robot"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// ClientCounter reports the number of connected operator clients —
// implemented by *server.Hub.
type ClientCounter interface {
	Count() int
}

type API struct {
	registry *robot.Registry
	clients  ClientCounter
	logger   *zap.Logger
	service  string
}

func New(reg *robot.Registry, clients ClientCounter, logger *zap.Logger, service string) *API {
	return &API{registry: reg, clients: clients, logger: logger, service: service}
}

// Router builds the chi.Mux serving §6's HTTP surface.
func (a *API) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	r.Get("/robots", a.handleListRobots)
	r.Get("/robots/{robotId}", a.handleGetRobot)
	return r
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	snaps := a.registry.ListRobots()
	robots := make([]map[string]any, 0, len(snaps))
	for _, s := range snaps {
		robots = append(robots, map[string]any{
			"robotId":    s.RobotID,
			"online":     true,
			"lastSeen":   s.LastSeenAt.UnixMilli(),
			"mode":       s.Telemetry.Mode,
			"hasControl": s.Lease.OwnerClientID != nil,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   a.service,
		"robots":    robots,
		"uiClients": a.clients.Count(),
		"timestamp": nowMillis(),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (a *API) handleListRobots(w http.ResponseWriter, r *http.Request) {
	snaps := a.registry.ListRobots()
	projections := make([]map[string]any, 0, len(snaps))
	for _, s := range snaps {
		projections = append(projections, robotProjection(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"robots": projections, "timestamp": nowMillis()})
}

func (a *API) handleGetRobot(w http.ResponseWriter, r *http.Request) {
	robotID := chi.URLParam(r, "robotId")
	record, ok := a.registry.GetRobot(robotID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Robot not found"})
		return
	}
	telemetry, lease := record.Snapshot()
	version, capabilities, lastSeen := record.Meta()
	writeJSON(w, http.StatusOK, robotProjection(robot.Snapshot{
		RobotID: record.ID, Online: true, LastSeenAt: lastSeen,
		Version: version, Capabilities: capabilities,
		Telemetry: telemetry, Lease: lease,
	}))
}

func robotProjection(s robot.Snapshot) map[string]any {
	return map[string]any{
		"robotId":      s.RobotID,
		"online":       s.Online,
		"lastSeen":     s.LastSeenAt.UnixMilli(),
		"version":      s.Version,
		"capabilities": s.Capabilities,
		"mode":         s.Telemetry.Mode,
		"pose":         s.Telemetry.Pose,
		"battery":      s.Telemetry.Battery,
		"nav":          s.Telemetry.Nav,
		"maps":         s.Telemetry.Maps,
		"pois":         s.Telemetry.Pois,
		"control":      s.Lease,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
