package robot

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fordward/relay/internal/protocol"
)

// Snapshot is a point-in-time, lock-free copy of a RobotRecord,
// suitable for JSON serialization without holding the registry lock
// during I/O — the same copy-on-read discipline the teacher's
// manager.GetRobot/GetAllRobots use.
type Snapshot struct {
	RobotID      string
	Online       bool
	LastSeenAt   time.Time
	Version      string
	Capabilities []string
	Telemetry    protocol.Telemetry
	Lease        protocol.LeaseProjection
}

// Registry holds the mapping from RobotId to RobotRecord. Every
// mutation of the map itself is serialised by mu; mutations of a
// single record's fields are serialised by that record's own mutex
// (see record.go), per §5's split shared-resource policy.
type Registry struct {
	mu     sync.RWMutex
	robots map[string]*RobotRecord
}

func NewRegistry() *Registry {
	return &Registry{robots: make(map[string]*RobotRecord)}
}

// UpsertRobot replaces the entry for id with a freshly constructed
// record, closing the previous record's socket first so invariant 1
// (at most one visible RobotRecord per id) never lapses. Returns the
// previous record, if any, so the caller can log the supersession.
func (reg *Registry) UpsertRobot(id string, socket *websocket.Conn, version string, capabilities []string) *RobotRecord {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	prev := reg.robots[id]
	if prev != nil {
		prev.Close()
	}
	next := NewRobotRecord(id, socket, version, capabilities)
	reg.robots[id] = next
	return prev
}

// GetRobot returns the live record for id, if any.
func (reg *Registry) GetRobot(id string) (*RobotRecord, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.robots[id]
	return r, ok
}

// RemoveRobot compare-and-removes: it only deletes the entry if the
// stored record is identical (by pointer) to the one supplied,
// preventing a late reaper or close handler from evicting a robot
// that already reconnected under the same id.
func (reg *Registry) RemoveRobot(id string, record *RobotRecord) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.robots[id] != record {
		return false
	}
	delete(reg.robots, id)
	return true
}

// Records returns a point-in-time slice of the live record pointers —
// used internally by the reaper and by operator-disconnect handling,
// which need to act on the records themselves, not a serializable copy.
func (reg *Registry) Records() []*RobotRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*RobotRecord, 0, len(reg.robots))
	for _, r := range reg.robots {
		out = append(out, r)
	}
	return out
}

// ListRobots returns a point-in-time snapshot of every registered
// robot, safe to serialize without holding reg.mu or any record's
// mutex during I/O.
func (reg *Registry) ListRobots() []Snapshot {
	reg.mu.RLock()
	records := make([]*RobotRecord, 0, len(reg.robots))
	for _, r := range reg.robots {
		records = append(records, r)
	}
	reg.mu.RUnlock()

	out := make([]Snapshot, 0, len(records))
	for _, r := range records {
		telemetry, lease := r.Snapshot()
		version, capabilities, lastSeen := r.Meta()
		out = append(out, Snapshot{
			RobotID:      r.ID,
			Online:       true,
			LastSeenAt:   lastSeen,
			Version:      version,
			Capabilities: capabilities,
			Telemetry:    telemetry,
			Lease:        lease,
		})
	}
	return out
}
