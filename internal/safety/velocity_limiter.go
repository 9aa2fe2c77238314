package safety

import "math"

// VelocityLimiter clamps teleop velocity commands to configured
// maximum values, independently per axis. Adapted from the teacher's
// magnitude-clamped 2D linear-velocity limiter: this relay's teleop
// command has no linear_y axis, and the spec clamps linear_x and
// angular_z independently rather than preserving a combined vector's
// direction.
type VelocityLimiter struct {
	maxLinearVel  float64
	maxAngularVel float64
}

func NewVelocityLimiter(maxLinear, maxAngular float64) *VelocityLimiter {
	return &VelocityLimiter{maxLinearVel: maxLinear, maxAngularVel: maxAngular}
}

// LimitResult holds the clamped values and whether clamping occurred.
type LimitResult struct {
	LinearX  float64
	AngularZ float64
	Clamped  bool
}

// Limit clamps linearX/angularZ to ±max, inclusive. Callers are
// expected to have already coerced non-finite inputs to 0 (see
// protocol.ToFloat) before calling Limit.
func (v *VelocityLimiter) Limit(linearX, angularZ float64) LimitResult {
	res := LimitResult{LinearX: linearX, AngularZ: angularZ}

	if clamped, out := clamp(linearX, v.maxLinearVel); clamped {
		res.LinearX = out
		res.Clamped = true
	}
	if clamped, out := clamp(angularZ, v.maxAngularVel); clamped {
		res.AngularZ = out
		res.Clamped = true
	}
	return res
}

func clamp(v, bound float64) (clamped bool, out float64) {
	if math.Abs(v) > bound {
		if v > 0 {
			return true, bound
		}
		return true, -bound
	}
	return false, v
}
