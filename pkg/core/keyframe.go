// pkg/core/keyframe.go
package core

// CurveKind names the easing curve applied to the segment leaving a keyframe.
type CurveKind string

const (
	CurveLinear    CurveKind = "linear"
	CurveEaseIn    CurveKind = "easeIn"
	CurveEaseOut   CurveKind = "easeOut"
	CurveEaseInOut CurveKind = "easeInOut"
	CurveBezier    CurveKind = "bezier"
)

// BezierParams are the two control points of a cubic Bézier easing curve,
// matching the CSS cubic-bezier(x1, y1, x2, y2) convention.
type BezierParams struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Keyframe anchors a camera state at a point on the timeline. The curve is a
// property of the outgoing segment: it shapes motion from this keyframe to
// the next one.
type Keyframe struct {
	Time      float64       `json:"time"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Zoom      float64       `json:"zoom"`
	Curve     CurveKind     `json:"curve"`
	Bezier    *BezierParams `json:"bezier,omitempty"`
}

// State returns the camera state stored on the keyframe.
func (k Keyframe) State() CameraState {
	return CameraState{
		Latitude:  k.Latitude,
		Longitude: k.Longitude,
		Zoom:      k.Zoom,
	}
}
