package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/Uni298/OSMStudio/pkg/core"
)

// PathLineString builds a lon/lat LineString from a keyframe snapshot, in
// keyframe order. Overlay renderers subscribe to keyframe mutations and
// rebuild this to draw the camera track over the map.
func PathLineString(frames []core.Keyframe) (geom.LineString, error) {
	if len(frames) < 2 {
		return geom.LineString{}, fmt.Errorf("camera path needs at least 2 keyframes, got %d", len(frames))
	}

	flat := make([]float64, 0, len(frames)*2)
	for _, kf := range frames {
		flat = append(flat, kf.Longitude, kf.Latitude)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// PathWKT renders the camera path as WKT.
func PathWKT(frames []core.Keyframe) (string, error) {
	ls, err := PathLineString(frames)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// PathGeoJSON renders the camera path as a GeoJSON geometry.
func PathGeoJSON(frames []core.Keyframe) ([]byte, error) {
	ls, err := PathLineString(frames)
	if err != nil {
		return nil, err
	}
	return ls.AsGeometry().MarshalJSON()
}
