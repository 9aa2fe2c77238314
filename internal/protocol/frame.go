// Package protocol defines the JSON frame envelope exchanged on both
// the /robot and /ui WebSocket endpoints, plus the field-name aliasing
// the wire format inherits from the existing robot agent.
package protocol

import (
	"encoding/json"
	"math"
)

// Frame types accepted on /robot.
const (
	TypeHello         = "hello"
	TypeRegister      = "register"
	TypeTelemetry     = "telemetry"
	TypeCommandResult = "command_result"
)

// Frame types accepted on /ui.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeControl     = "control"
	TypeCommand     = "command"
	TypePing        = "ping"
)

// Frame types emitted by the relay.
const (
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeEvent   = "event"
	TypeError   = "error"
	TypePong    = "pong"
)

// Operator-visible error codes, verbatim.
const (
	ErrRobotOffline   = "ROBOT_OFFLINE"
	ErrNoControl      = "NO_CONTROL"
	ErrControlDenied  = "CONTROL_DENIED"
	ErrInvalidMode    = "INVALID_MODE"
	ErrMissingParam   = "MISSING_PARAM"
	ErrUnknownPoi     = "UNKNOWN_POI"
	ErrUnknownCommand = "UNKNOWN_COMMAND"
)

// Codec marshals and unmarshals the JSON text frame envelope. Kept as
// a small value type rather than free functions so callers inject it
// the same way they inject a logger, matching how the rest of this
// package's neighbours (config, safety) are wired.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Decode parses a raw frame into a generic field map plus its type.
// Fields are looked up with GetString/GetFloat/etc. rather than a
// fixed struct, because the same "type" discriminates payloads of
// very different shapes across both endpoints.
func (c *Codec) Decode(data []byte) (string, map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, err
	}
	t, _ := m["type"].(string)
	return t, m, nil
}

// Encode marshals any outbound frame value (map[string]any or a typed
// struct) to its JSON text form.
func (c *Codec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Payload extracts the nested "payload" object of a decoded frame, if
// present.
func Payload(m map[string]any) map[string]any {
	if p, ok := m["payload"].(map[string]any); ok {
		return p
	}
	return nil
}

// GetString looks up the first present key among aliases (e.g.
// "robotId" then "robot_id") and returns it as a string.
func GetString(m map[string]any, keys ...string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// GetStringDefault is GetString with a fallback when every alias is
// absent or empty — used for the legacy default RobotId.
func GetStringDefault(m map[string]any, def string, keys ...string) string {
	if s, ok := GetString(m, keys...); ok {
		return s
	}
	return def
}

// GetStringSlice reads a []string field from a JSON array, keeping
// only its string entries; entries of any other type are skipped.
func GetStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToFloat coerces an arbitrary decoded JSON value to float64,
// returning 0 for anything that isn't a finite number — covers
// missing fields, non-numeric JSON, NaN and ±Infinity alike, per the
// numeric semantics §4.4 requires of teleop inputs.
func ToFloat(v any) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// GetFloat reads a numeric field by key, applying ToFloat's
// non-finite-to-zero coercion.
func GetFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	return ToFloat(m[key])
}
