package safety

import "testing"

func TestVelocityLimiter_NoClamp(t *testing.T) {
	limiter := NewVelocityLimiter(0.5, 1.5)

	result := limiter.Limit(0.3, 1.0)
	if result.Clamped {
		t.Error("expected no clamping")
	}
	if result.LinearX != 0.3 || result.AngularZ != 1.0 {
		t.Errorf("unexpected output: %+v", result)
	}
}

func TestVelocityLimiter_ClampLinear(t *testing.T) {
	limiter := NewVelocityLimiter(0.5, 1.5)

	result := limiter.Limit(2.0, 0.0)
	if !result.Clamped {
		t.Error("expected clamping")
	}
	if result.LinearX != 0.5 {
		t.Errorf("expected linear_x=0.5, got %f", result.LinearX)
	}
}

func TestVelocityLimiter_ClampAngularNegative(t *testing.T) {
	limiter := NewVelocityLimiter(0.5, 1.5)

	result := limiter.Limit(2.0, -5.0)
	if result.LinearX != 0.5 || result.AngularZ != -1.5 {
		t.Errorf("unexpected output: %+v", result)
	}
}

func TestVelocityLimiter_InclusiveBound(t *testing.T) {
	limiter := NewVelocityLimiter(0.5, 1.5)

	result := limiter.Limit(0.5, 1.5)
	if result.Clamped {
		t.Error("exact bound should not be clamped (inclusive)")
	}
}

func TestVelocityLimiter_JustOverBound(t *testing.T) {
	limiter := NewVelocityLimiter(0.5, 1.5)

	result := limiter.Limit(0.5000001, 0)
	if result.LinearX != 0.5 {
		t.Errorf("expected linear_x=0.5, got %f", result.LinearX)
	}
}
