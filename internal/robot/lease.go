package robot

import "time"

// LeaseEvent describes the side effect of a lease transition: either
// a broadcast to every subscriber of the robot, or a reply routed to
// the requester alone. Callers in the server package translate this
// into the actual `event`/`error` frame.
type LeaseEvent struct {
	Kind          string // control_acquired, control_confirmed, control_denied, control_released, control_forced
	RobotID       string
	OwnerClientID string
	OwnerName     string
	PreviousOwner string
	Reason        string
	Holder        string
	Broadcast     bool // true: fan out to subscribers; false: requester only
}

// RequestControl implements the `request` action of §4.3's transition
// table. Grounded on the lease-with-owner-check shape of the
// teacher's operation lock, but replacing its wall-clock expiry with
// the spec's explicit Unowned/Owned states.
func (r *RobotRecord) RequestControl(clientID, name string) LeaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Lease.Owned() {
		r.Lease = Lease{
			OwnerClientID: clientID,
			OwnerName:     name,
			AcquiredAt:    time.Now(),
			LastCommandAt: time.Now(),
		}
		return LeaseEvent{
			Kind: "control_acquired", RobotID: r.ID,
			OwnerClientID: clientID, OwnerName: name, Broadcast: true,
		}
	}

	if r.Lease.OwnerClientID == clientID {
		r.Lease.LastCommandAt = time.Now()
		return LeaseEvent{
			Kind: "control_confirmed", RobotID: r.ID,
			OwnerClientID: clientID, OwnerName: r.Lease.OwnerName, Broadcast: false,
		}
	}

	return LeaseEvent{
		Kind: "control_denied", RobotID: r.ID,
		Holder: r.Lease.OwnerName, Broadcast: false,
	}
}

// ReleaseControl implements the `release` action. Returns ok=false
// for the "owned by someone else" case, which is a silent no-op per
// §4.3's table — no event is emitted at all, not even to the
// requester (the spec preserves this asymmetry deliberately; see
// DESIGN.md).
func (r *RobotRecord) ReleaseControl(clientID string) (LeaseEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Lease.Owned() || r.Lease.OwnerClientID != clientID {
		return LeaseEvent{}, false
	}

	prev := r.Lease.OwnerName
	r.Lease = Lease{}
	return LeaseEvent{
		Kind: "control_released", RobotID: r.ID,
		PreviousOwner: prev, Broadcast: true,
	}, true
}

// ForceControl implements the `force` action: no credential check, by
// spec design (§9 — reproduced verbatim, not hardened).
func (r *RobotRecord) ForceControl(clientID, name string) LeaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.Lease.OwnerName
	r.Lease = Lease{
		OwnerClientID: clientID,
		OwnerName:     name,
		AcquiredAt:    time.Now(),
		LastCommandAt: time.Now(),
	}
	return LeaseEvent{
		Kind: "control_forced", RobotID: r.ID,
		OwnerClientID: clientID, OwnerName: name, PreviousOwner: prev, Broadcast: true,
	}
}

// OwnerDisconnect implements the non-operator-driven eviction that
// fires when the current lease owner's socket closes.
func (r *RobotRecord) OwnerDisconnect(clientID string) (LeaseEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Lease.Owned() || r.Lease.OwnerClientID != clientID {
		return LeaseEvent{}, false
	}
	prev := r.Lease.OwnerName
	r.Lease = Lease{}
	return LeaseEvent{
		Kind: "control_released", RobotID: r.ID,
		PreviousOwner: prev, Reason: "owner_disconnected", Broadcast: true,
	}, true
}

// CheckIdleEviction implements the idle-lease reaper's transition:
// Owned(c,_) → Unowned when now−lastCommandAt exceeds idleTimeout.
func (r *RobotRecord) CheckIdleEviction(idleTimeout time.Duration, now time.Time) (LeaseEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Lease.Owned() || now.Sub(r.Lease.LastCommandAt) <= idleTimeout {
		return LeaseEvent{}, false
	}
	prev := r.Lease.OwnerName
	r.Lease = Lease{}
	return LeaseEvent{
		Kind: "control_released", RobotID: r.ID,
		PreviousOwner: prev, Reason: "idle_timeout", Broadcast: true,
	}, true
}

// HasControl reports whether clientID currently holds the lease —
// the authorization check for motion commands in §4.4 step 2.
func (r *RobotRecord) HasControl(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Lease.Owned() && r.Lease.OwnerClientID == clientID
}

// RefreshCommandTime advances lastCommandAt — called on every
// authorised motion command, independent of the request/release path.
func (r *RobotRecord) RefreshCommandTime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Lease.Owned() {
		r.Lease.LastCommandAt = time.Now()
	}
}
