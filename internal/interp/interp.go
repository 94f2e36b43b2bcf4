// Package interp implements the camera interpolation engine: a pure mapping
// from a bracketing keyframe pair and a query time to a camera state.
package interp

import (
	"math"

	"github.com/Uni298/OSMStudio/pkg/core"
)

const (
	// bezierEpsilon is the horizontal error below which the Newton-Raphson
	// solver stops early.
	bezierEpsilon = 0.001

	// bezierIterations bounds the Newton-Raphson solver.
	bezierIterations = 8
)

// Sample interpolates the camera state at queryTime between two bracketing
// keyframes. If before and after are the same keyframe (query time outside
// the keyframe range, or a single keyframe path), its state is returned
// unchanged; there is no extrapolation. The easing curve is taken from the
// before keyframe: the curve is a property of the outgoing segment.
func Sample(before, after core.Keyframe, queryTime float64) core.CameraState {
	if before == after {
		return before.State()
	}

	span := after.Time - before.Time
	t := 0.0
	if span > 0 {
		t = clamp((queryTime-before.Time)/span, 0, 1)
	}

	eased := Ease(before.Curve, before.Bezier, t)

	return core.CameraState{
		Latitude:  lerp(before.Latitude, after.Latitude, eased),
		Longitude: lerp(before.Longitude, after.Longitude, eased),
		Zoom:      lerp(before.Zoom, after.Zoom, eased),
	}
}

// SampleBracket is Sample with optional endpoints, as produced by a bracket
// lookup. Both nil means no keyframes exist and the default state applies.
func SampleBracket(before, after *core.Keyframe, queryTime float64) core.CameraState {
	switch {
	case before == nil && after == nil:
		return core.DefaultCameraState
	case before == nil:
		return after.State()
	case after == nil:
		return before.State()
	}
	return Sample(*before, *after, queryTime)
}

// Ease applies the named curve to a normalized position t in [0,1].
// Unknown curve kinds fall back to linear.
func Ease(curve core.CurveKind, bezier *core.BezierParams, t float64) float64 {
	switch curve {
	case core.CurveEaseIn:
		return t * t * t
	case core.CurveEaseOut:
		u := 1 - t
		return 1 - u*u*u
	case core.CurveEaseInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := -2*t + 2
		return 1 - u*u*u/2
	case core.CurveBezier:
		if bezier == nil {
			return t
		}
		return bezierEase(t, *bezier)
	default:
		return t
	}
}

// bezierEase evaluates a CSS-style cubic Bézier easing curve at input x = t.
// The curve runs from (0,0) to (1,1) with control points (X1,Y1) and
// (X2,Y2). The parameter u with bezierX(u) == t is found by Newton-Raphson;
// if the derivative collapses the last iterate is used as-is to avoid a
// division blow-up.
func bezierEase(t float64, p core.BezierParams) float64 {
	u := t
	for i := 0; i < bezierIterations; i++ {
		x := bezierAxis(u, p.X1, p.X2) - t
		if math.Abs(x) < bezierEpsilon {
			break
		}
		d := bezierAxisDerivative(u, p.X1, p.X2)
		if math.Abs(d) < 1e-6 {
			break
		}
		u -= x / d
	}
	u = clamp(u, 0, 1)
	return bezierAxis(u, p.Y1, p.Y2)
}

// bezierAxis evaluates one axis of the cubic Bézier with endpoints 0 and 1.
func bezierAxis(u, c1, c2 float64) float64 {
	v := 1 - u
	return 3*v*v*u*c1 + 3*v*u*u*c2 + u*u*u
}

func bezierAxisDerivative(u, c1, c2 float64) float64 {
	v := 1 - u
	return 3*v*v*c1 + 6*v*u*(c2-c1) + 3*u*u*(1-c2)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
