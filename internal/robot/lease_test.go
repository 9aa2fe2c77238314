package robot

import (
	"testing"
	"time"
)

func newTestRecord() *RobotRecord {
	return NewRobotRecord("fordward", nil, "0.1.0", []string{"pose"})
}

func TestRequestControl_GrantsWhenUnowned(t *testing.T) {
	r := newTestRecord()

	evt := r.RequestControl("c1", "A")
	if evt.Kind != "control_acquired" || !evt.Broadcast {
		t.Fatalf("expected broadcast control_acquired, got %+v", evt)
	}
	if !r.HasControl("c1") {
		t.Error("expected c1 to hold the lease")
	}
}

func TestRequestControl_SameOwnerIsIdempotent(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")
	before := r.Lease

	evt := r.RequestControl("c1", "A")
	if evt.Kind != "control_confirmed" || evt.Broadcast {
		t.Fatalf("expected requester-only control_confirmed, got %+v", evt)
	}
	if r.Lease.OwnerClientID != before.OwnerClientID || r.Lease.AcquiredAt != before.AcquiredAt {
		t.Error("idempotent request must not change owner or acquisition time")
	}
}

func TestRequestControl_OtherClientDenied(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	evt := r.RequestControl("c2", "B")
	if evt.Kind != "control_denied" || evt.Holder != "A" || evt.Broadcast {
		t.Fatalf("expected requester-only control_denied holder=A, got %+v", evt)
	}
	if !r.HasControl("c1") {
		t.Error("lease must remain with c1")
	}
}

func TestReleaseControl_OwnerReleases(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	evt, ok := r.ReleaseControl("c1")
	if !ok || evt.Kind != "control_released" || !evt.Broadcast || evt.PreviousOwner != "A" {
		t.Fatalf("expected broadcast control_released, got ok=%v evt=%+v", ok, evt)
	}
	if r.HasControl("c1") {
		t.Error("lease should be unowned")
	}
}

func TestReleaseControl_NonOwnerIsSilentNoOp(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	_, ok := r.ReleaseControl("c2")
	if ok {
		t.Error("release by non-owner must be a silent no-op")
	}
	if !r.HasControl("c1") {
		t.Error("lease must remain with c1")
	}
}

func TestForceControl_OverridesWithoutCredentialCheck(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	evt := r.ForceControl("c2", "B")
	if evt.Kind != "control_forced" || evt.PreviousOwner != "A" || !evt.Broadcast {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if !r.HasControl("c2") {
		t.Error("c2 should now hold the lease")
	}
}

func TestOwnerDisconnect_ReleasesOnlyForOwner(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	if _, ok := r.OwnerDisconnect("c2"); ok {
		t.Error("disconnect of non-owner must not release the lease")
	}
	evt, ok := r.OwnerDisconnect("c1")
	if !ok || evt.Reason != "owner_disconnected" {
		t.Fatalf("expected owner_disconnected release, got ok=%v evt=%+v", ok, evt)
	}
}

func TestCheckIdleEviction(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	if _, ok := r.CheckIdleEviction(60*time.Second, time.Now()); ok {
		t.Error("freshly acquired lease must not be idle-evicted")
	}

	future := time.Now().Add(2 * time.Minute)
	evt, ok := r.CheckIdleEviction(60*time.Second, future)
	if !ok || evt.Reason != "idle_timeout" || evt.PreviousOwner != "A" {
		t.Fatalf("expected idle_timeout release, got ok=%v evt=%+v", ok, evt)
	}
}

func TestRefreshCommandTime_DefersIdleEviction(t *testing.T) {
	r := newTestRecord()
	r.RequestControl("c1", "A")

	soon := time.Now().Add(30 * time.Second)
	r.Lease.LastCommandAt = time.Now().Add(-50 * time.Second)
	r.RefreshCommandTime()

	if _, ok := r.CheckIdleEviction(60*time.Second, soon); ok {
		t.Error("a refreshed lease must not be idle-evicted before the timeout elapses again")
	}
}
