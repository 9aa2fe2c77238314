// Package robot holds the Registry and RobotRecord at the center of
// the relay: one record per connected robot, its telemetry snapshot,
// and its control lease.
package robot

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fordward/relay/internal/protocol"
)

// outboundBuffer bounds the per-robot send queue; a slow or wedged
// peer drops frames rather than stalling the sender, mirroring the
// client-side hub's backpressure policy.
const outboundBuffer = 64

// Lease is the control lease embedded in a RobotRecord. Unowned is
// represented by an empty OwnerClientID.
type Lease struct {
	OwnerClientID string
	OwnerName     string
	AcquiredAt    time.Time
	LastCommandAt time.Time
}

func (l Lease) Owned() bool {
	return l.OwnerClientID != ""
}

// RobotRecord is one registered robot: its socket, liveness, latest
// telemetry, and lease. All of it is local to the record and
// protected by its own mutex — the registry's lock only guards the
// id→record mapping, per §5's shared-resource policy.
type RobotRecord struct {
	mu sync.Mutex

	ID           string
	Socket       *websocket.Conn
	Send         chan []byte
	Version      string
	Capabilities []string
	LastSeenAt   time.Time
	Telemetry    protocol.Telemetry
	Lease        Lease

	closed bool
}

// NewRobotRecord constructs a record for a freshly accepted socket.
func NewRobotRecord(id string, socket *websocket.Conn, version string, capabilities []string) *RobotRecord {
	return &RobotRecord{
		ID:           id,
		Socket:       socket,
		Send:         make(chan []byte, outboundBuffer),
		Version:      version,
		Capabilities: capabilities,
		LastSeenAt:   time.Now(),
	}
}

// Close terminates the record's socket and send channel. Safe to call
// more than once.
func (r *RobotRecord) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.Send)
	if r.Socket != nil {
		r.Socket.Close()
	}
}

// Touch updates LastSeenAt, monotonically, on every inbound frame.
func (r *RobotRecord) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.After(r.LastSeenAt) {
		r.LastSeenAt = now
	}
}

// Meta returns the record's identity fields and last-seen time
// consistently, under its own lock.
func (r *RobotRecord) Meta() (version string, capabilities []string, lastSeen time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Version, r.Capabilities, r.LastSeenAt
}

// IsStale reports whether the record has been silent longer than timeout.
func (r *RobotRecord) IsStale(timeout time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.LastSeenAt) > timeout
}

// UpdateTelemetry replaces the telemetry snapshot and returns the
// lease projection observed atomically with it, satisfying invariant
// 5 (telemetry and lease are read together under one lock).
func (r *RobotRecord) UpdateTelemetry(t protocol.Telemetry) (protocol.Telemetry, protocol.LeaseProjection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Telemetry = t
	return r.Telemetry, r.leaseProjectionLocked()
}

// Snapshot returns the telemetry plus lease projection, consistent
// with one another, for a `state` push that wasn't triggered by a
// telemetry frame (e.g. on subscribe).
func (r *RobotRecord) Snapshot() (protocol.Telemetry, protocol.LeaseProjection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Telemetry, r.leaseProjectionLocked()
}

func (r *RobotRecord) leaseProjectionLocked() protocol.LeaseProjection {
	if !r.Lease.Owned() {
		return protocol.LeaseProjection{}
	}
	owner := r.Lease.OwnerClientID
	return protocol.LeaseProjection{
		OwnerClientID: &owner,
		OwnerName:     r.Lease.OwnerName,
		Since:         r.Lease.AcquiredAt.UnixMilli(),
	}
}

// IsOpen reports whether the record's socket is still live.
func (r *RobotRecord) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// TrySend enqueues a frame for delivery, dropping it if the outbound
// buffer is full or the record has already been closed rather than
// blocking the caller or sending on a closed channel.
func (r *RobotRecord) TrySend(data []byte) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	select {
	case r.Send <- data:
		return false
	default:
		return true
	}
}
