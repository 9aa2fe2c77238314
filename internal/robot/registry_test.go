package robot

import "testing"

func TestUpsertRobot_ReplacesPriorRecord(t *testing.T) {
	reg := NewRegistry()

	reg.UpsertRobot("fordward", nil, "0.1.0", []string{"pose"})
	first, _ := reg.GetRobot("fordward")

	reg.UpsertRobot("fordward", nil, "0.2.0", nil)
	second, ok := reg.GetRobot("fordward")
	if !ok {
		t.Fatal("expected a record after re-registration")
	}
	if second == first {
		t.Error("expected a fresh record on upsert")
	}
	if first.IsOpen() {
		t.Error("prior record's socket should be closed on supersession")
	}
}

func TestRemoveRobot_CompareAndRemove(t *testing.T) {
	reg := NewRegistry()
	reg.UpsertRobot("fordward", nil, "0.1.0", nil)
	stale, _ := reg.GetRobot("fordward")

	// Simulate a reconnect racing with a late reaper holding the old record.
	reg.UpsertRobot("fordward", nil, "0.2.0", nil)

	if reg.RemoveRobot("fordward", stale) {
		t.Error("compare-and-remove must reject a stale record reference")
	}
	if _, ok := reg.GetRobot("fordward"); !ok {
		t.Error("the new record must still be present")
	}

	current, _ := reg.GetRobot("fordward")
	if !reg.RemoveRobot("fordward", current) {
		t.Error("compare-and-remove must succeed for the current record")
	}
	if _, ok := reg.GetRobot("fordward"); ok {
		t.Error("record should be gone after a matching remove")
	}
}

func TestListRobots_ReturnsSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.UpsertRobot("fordward", nil, "0.1.0", []string{"pose"})
	reg.UpsertRobot("other", nil, "1.0.0", []string{"battery"})

	snaps := reg.ListRobots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
}
