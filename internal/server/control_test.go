package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fordward/relay/internal/protocol"
)

func TestHandleControl_RobotOffline(t *testing.T) {
	s, _ := testServer()
	client := NewClient("c1", nil)

	s.handleControl(client, map[string]any{
		"robotId": "ghost",
		"payload": map[string]any{"action": "request"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrRobotOffline {
		t.Errorf("expected ROBOT_OFFLINE, got %+v", m)
	}
}

func TestHandleControl_RequestGrantsAndBroadcasts(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	a := NewClient("a", nil)
	a.Subscribe("fordward", "A")
	s.Hub.Register(a)
	defer s.Hub.Unregister(a)
	time.Sleep(5 * time.Millisecond)

	s.handleControl(a, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"action": "request", "clientName": "A"},
	})

	select {
	case data := <-a.Send:
		var m map[string]any
		json.Unmarshal(data, &m)
		payload := m["payload"].(map[string]any)
		if payload["kind"] != "control_acquired" {
			t.Errorf("expected control_acquired broadcast, got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast frame")
	}
}

func TestHandleControl_SecondRequesterDenied(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("a", "A")

	b := NewClient("b", nil)
	s.Hub.Register(b)
	defer s.Hub.Unregister(b)
	time.Sleep(5 * time.Millisecond)

	s.handleControl(b, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"action": "request", "clientName": "B"},
	})

	select {
	case data := <-b.Send:
		var m map[string]any
		json.Unmarshal(data, &m)
		if m["type"] != protocol.TypeError || m["code"] != protocol.ErrControlDenied || m["holder"] != "A" {
			t.Errorf("expected CONTROL_DENIED with holder A, got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a reply to b")
	}
}

func TestHandleControl_ReleaseByNonOwnerIsSilent(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("a", "A")

	b := NewClient("b", nil)
	s.handleControl(b, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"action": "release"},
	})

	select {
	case data := <-b.Send:
		t.Fatalf("expected no reply for non-owner release, got %s", data)
	default:
	}
	if !record.HasControl("a") {
		t.Error("expected a to still hold the lease")
	}
}

func TestHandleControl_ForceOverridesWithoutCheck(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("a", "A")

	c := NewClient("c", nil)
	c.Subscribe("fordward", "C")
	s.Hub.Register(c)
	defer s.Hub.Unregister(c)
	time.Sleep(5 * time.Millisecond)

	s.handleControl(c, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"action": "force", "clientName": "C"},
	})

	select {
	case data := <-c.Send:
		var m map[string]any
		json.Unmarshal(data, &m)
		payload := m["payload"].(map[string]any)
		if payload["kind"] != "control_forced" {
			t.Errorf("expected control_forced broadcast, got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast frame")
	}
	if !record.HasControl("c") {
		t.Error("expected c to now hold the lease")
	}
}
