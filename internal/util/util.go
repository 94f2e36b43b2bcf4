// Package util provides small helpers shared across the studio packages.
package util

import "fmt"

// FrameFileName formats the durable storage name of a frame image. Frame
// files sort lexically in frame-index order because the index is zero-padded.
func FrameFileName(frameIndex int) string {
	return fmt.Sprintf("frame_%06d.png", frameIndex)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Percent returns done/total as a percentage in [0, 100]. A zero total
// yields 0 rather than NaN.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Clamp(float64(done)/float64(total)*100, 0, 100)
}
