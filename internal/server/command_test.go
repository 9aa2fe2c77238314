package server

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/fordward/relay/internal/protocol"
	"github.com/fordward/relay/internal/robot"
	"github.com/fordward/relay/internal/safety"
)

func testServer() (*Server, *robot.Registry) {
	reg := robot.NewRegistry()
	hub := NewHub(zap.NewNop())
	go hub.Run()
	vel := safety.NewVelocityLimiter(0.5, 1.5)
	cfg := Config{MaxLinearVelocity: 0.5, MaxAngularVelocity: 1.5}
	return New(reg, hub, vel, cfg, zap.NewNop(), nil), reg
}

func drainClient(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.Send:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad json: %v", err)
		}
		return m
	default:
		t.Fatal("expected a frame on client.Send, got none")
		return nil
	}
}

func TestHandleCommand_RobotOffline(t *testing.T) {
	s, _ := testServer()
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "ghost",
		"payload": map[string]any{"kind": "stop"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrRobotOffline {
		t.Errorf("expected ROBOT_OFFLINE, got %+v", m)
	}
}

func TestHandleCommand_TeleopRequiresControl(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "teleop", "linear_x": 0.2, "angular_z": 0.1},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrNoControl {
		t.Errorf("expected NO_CONTROL, got %+v", m)
	}
}

func TestHandleCommand_TeleopClampsWhenAuthorised(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("c1", "A")
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "teleop", "linear_x": 2.0, "angular_z": -5.0},
	})

	select {
	case data := <-record.Send:
		var m map[string]any
		json.Unmarshal(data, &m)
		if m["linear_x"] != 0.5 || m["angular_z"] != -1.5 {
			t.Errorf("expected clamped teleop, got %+v", m)
		}
	default:
		t.Fatal("expected a frame forwarded to the robot")
	}

	if !record.HasControl("c1") {
		t.Error("expected c1 to still hold the lease")
	}
}

func TestHandleCommand_SetModeInvalid(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "set_mode", "mode": "Nav"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrInvalidMode {
		t.Errorf("expected INVALID_MODE, got %+v", m)
	}
}

func TestHandleCommand_LoadMapMissingParam(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "load_map"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrMissingParam {
		t.Errorf("expected MISSING_PARAM, got %+v", m)
	}
}

func TestHandleCommand_GotoPoiUnknownWithCatalogue(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("c1", "A")
	record.UpdateTelemetry(protocol.Telemetry{
		Pois: []any{map[string]any{"id": "kitchen"}, map[string]any{"id": "lobby"}},
	})
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "goto_poi", "poiId": "garage"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrUnknownPoi {
		t.Errorf("expected UNKNOWN_POI, got %+v", m)
	}
	if m["availablePois"] == nil {
		t.Error("expected availablePois to be echoed back")
	}
}

func TestHandleCommand_GotoPoiEmptyCatalogueForwardsUnchecked(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	record, _ := reg.GetRobot("fordward")
	record.RequestControl("c1", "A")
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "goto_poi", "poiId": "anywhere"},
	})

	select {
	case data := <-record.Send:
		var m map[string]any
		json.Unmarshal(data, &m)
		if m["command"] != "go_to_poi" || m["poi_id"] != "anywhere" {
			t.Errorf("expected forwarded go_to_poi, got %+v", m)
		}
	default:
		t.Fatal("expected the command to be forwarded with no POI catalogue to check against")
	}
}

func TestHandleCommand_UnknownKind(t *testing.T) {
	s, reg := testServer()
	reg.UpsertRobot("fordward", nil, "1.0", nil)
	client := NewClient("c1", nil)

	s.handleCommand(client, map[string]any{
		"robotId": "fordward",
		"payload": map[string]any{"kind": "fly"},
	})

	m := drainClient(t, client)
	if m["code"] != protocol.ErrUnknownCommand {
		t.Errorf("expected UNKNOWN_COMMAND, got %+v", m)
	}
}
