package geo

import (
	"errors"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Camera coordinates arrive as EPSG:4326 (lat/lon). The render surface is
// commanded in EPSG:3857 (web mercator) so it can address tiles directly
// without a geodesy library of its own.

// ErrInvalidCoordinates is returned when a lat/lon pair is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ToMercator converts a lon/lat pair (EPSG:4326) to web mercator (EPSG:3857).
func ToMercator(longitude, latitude float64) (x, y float64, err error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return 0, 0, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	return x, y, nil
}

// FromMercator converts a web mercator point back to lon/lat.
func FromMercator(x, y float64) (longitude, latitude float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	longitude, latitude, _ = f(x, y, 0)
	return longitude, latitude
}

// Point3857 builds a simplefeatures point in web mercator from a lon/lat pair.
func Point3857(longitude, latitude float64) (geom.Point, error) {
	x, y, err := ToMercator(longitude, latitude)
	if err != nil {
		return geom.Point{}, err
	}
	point := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
	return point, nil
}
