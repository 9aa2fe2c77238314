package protocol

// Telemetry is the last-known payload reported by a robot. Treated as
// opaque beyond the POI list, which command validation consults.
type Telemetry struct {
	Mode    string         `json:"mode,omitempty"`
	Pose    map[string]any `json:"pose,omitempty"`
	Battery map[string]any `json:"battery,omitempty"`
	Nav     map[string]any `json:"nav,omitempty"`
	Maps    map[string]any `json:"maps,omitempty"`
	Pois    []any          `json:"pois,omitempty"`
}

// TelemetryFromFrame builds a Telemetry snapshot from an inbound
// telemetry frame: prefer the nested "payload" object, falling back to
// synthesizing one from flat top-level fields when payload is absent.
func TelemetryFromFrame(m map[string]any) Telemetry {
	src := Payload(m)
	if src == nil {
		src = m
	}
	t := Telemetry{}
	if mode, ok := GetString(src, "mode", "state"); ok {
		t.Mode = mode
	}
	if pose, ok := src["pose"].(map[string]any); ok {
		t.Pose = pose
	}
	if battery, ok := src["battery"].(map[string]any); ok {
		t.Battery = battery
	}
	if nav, ok := src["nav"].(map[string]any); ok {
		t.Nav = nav
	}
	if maps, ok := src["maps"].(map[string]any); ok {
		t.Maps = maps
	}
	if pois, ok := src["pois"].([]any); ok {
		t.Pois = pois
	}
	return t
}

// LeaseProjection is the wire view of a control lease, inlined into
// both `state` broadcasts and the `/robots` HTTP projection. An
// unowned lease serializes ownerClientId as JSON null, not "".
type LeaseProjection struct {
	OwnerClientID *string `json:"ownerClientId"`
	OwnerName     string  `json:"ownerName,omitempty"`
	Since         int64   `json:"since,omitempty"`
}

// SafetyConfig is the telemetry-rate hint and command bounds handed to
// a robot in its welcome frame.
type SafetyConfig struct {
	TelemetryRateHz    float64 `json:"telemetryRateHz"`
	MaxLinearVelocity  float64 `json:"maxLinearVelocity"`
	MaxAngularVelocity float64 `json:"maxAngularVelocity"`
}

// RobotWelcome is the frame sent back to a robot on hello/register.
type RobotWelcome struct {
	Type       string       `json:"type"`
	ServerTime int64        `json:"serverTime"`
	Safety     SafetyConfig `json:"safety"`
}

// ClientWelcome is the frame sent to an operator on /ui accept.
type ClientWelcome struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Robots   []any  `json:"robots"`
}

// StateFrame is the per-robot snapshot pushed to subscribers.
type StateFrame struct {
	Type      string          `json:"type"`
	RobotID   string          `json:"robotId"`
	Online    bool            `json:"online"`
	Mode      string          `json:"mode,omitempty"`
	Pose      map[string]any  `json:"pose,omitempty"`
	Battery   map[string]any  `json:"battery,omitempty"`
	Nav       map[string]any  `json:"nav,omitempty"`
	Maps      map[string]any  `json:"maps,omitempty"`
	Pois      []any           `json:"pois,omitempty"`
	Control   LeaseProjection `json:"control"`
}

// EventFrame carries lifecycle and lease-transition notifications.
type EventFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ErrorFrame reports a validation or authorization failure to the
// originating operator only.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Holder  string `json:"holder,omitempty"`
	// AvailablePois is only populated for UNKNOWN_POI.
	AvailablePois []any `json:"availablePois,omitempty"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewCommandFrame builds the robot-bound {"type":"command",...} frame.
// Fields beyond "command" are kind-specific, so they're passed as a
// flat map rather than modeled per kind.
func NewCommandFrame(command string, fields map[string]any) map[string]any {
	out := map[string]any{"type": TypeCommand, "command": command}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
