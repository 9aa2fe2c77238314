package reaper

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fordward/relay/internal/robot"
)

type fakeBroadcaster struct {
	offline []string
	lease   []robot.LeaseEvent
}

func (f *fakeBroadcaster) BroadcastRobotOffline(robotID, reason string) {
	f.offline = append(f.offline, robotID+":"+reason)
}

func (f *fakeBroadcaster) BroadcastLeaseEvent(robotID string, evt robot.LeaseEvent) {
	f.lease = append(f.lease, evt)
}

func TestSweepStale_EvictsAndBroadcasts(t *testing.T) {
	reg := robot.NewRegistry()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")

	b := &fakeBroadcaster{}
	r := New(reg, b, zap.NewNop(), time.Millisecond, time.Hour, time.Hour, time.Hour)

	r.sweepStale(time.Now().Add(time.Second))

	if len(b.offline) != 1 || b.offline[0] != "fordward:timeout" {
		t.Errorf("expected a timeout broadcast, got %+v", b.offline)
	}
	if _, ok := reg.GetRobot("fordward"); ok {
		t.Error("expected the robot to be removed from the registry")
	}
	if record.IsOpen() {
		t.Error("expected the stale record's socket to be closed")
	}
}

func TestSweepStale_LeavesFreshRobots(t *testing.T) {
	reg := robot.NewRegistry()
	reg.UpsertRobot("fordward", nil, "1.0", nil)

	b := &fakeBroadcaster{}
	r := New(reg, b, zap.NewNop(), time.Hour, time.Hour, time.Hour, time.Hour)

	r.sweepStale(time.Now())

	if len(b.offline) != 0 {
		t.Errorf("expected no eviction, got %+v", b.offline)
	}
	if _, ok := reg.GetRobot("fordward"); !ok {
		t.Error("expected the robot to remain registered")
	}
}

func TestSweepIdle_EvictsLeaseAfterTimeout(t *testing.T) {
	reg := robot.NewRegistry()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("c1", "A")

	b := &fakeBroadcaster{}
	r := New(reg, b, zap.NewNop(), time.Hour, time.Millisecond, time.Hour, time.Hour)

	r.sweepIdle(time.Now().Add(time.Second))

	if len(b.lease) != 1 || b.lease[0].Kind != "control_released" || b.lease[0].Reason != "idle_timeout" {
		t.Errorf("expected an idle_timeout lease release, got %+v", b.lease)
	}
	if record.HasControl("c1") {
		t.Error("expected the lease to be released")
	}
}
