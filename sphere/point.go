package sphere

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a point on the unit sphere, stored as a unit vector.
type Point struct {
	r3.Vec
}

// PointFromCoords returns the point for the given coordinates, normalized to
// unit length. The origin maps to an arbitrary fixed point on the sphere so
// that the result is always usable.
func PointFromCoords(x, y, z float64) Point {
	if x == 0 && y == 0 && z == 0 {
		return Point{r3.Vec{X: 1}}
	}
	return Point{r3.Unit(r3.Vec{X: x, Y: y, Z: z})}
}

// PointFromLatLngDegrees returns the point at the given latitude and
// longitude, both in degrees.
func PointFromLatLngDegrees(lat, lng float64) Point {
	phi := lat * math.Pi / 180
	theta := lng * math.Pi / 180
	cosphi := math.Cos(phi)
	return Point{r3.Vec{
		X: math.Cos(theta) * cosphi,
		Y: math.Sin(theta) * cosphi,
		Z: math.Sin(phi),
	}}
}

// LatLngDegrees returns the latitude and longitude of the point in degrees.
func (p Point) LatLngDegrees() (lat, lng float64) {
	lat = math.Atan2(p.Z, math.Sqrt(p.X*p.X+p.Y*p.Y)) * 180 / math.Pi
	lng = math.Atan2(p.Y, p.X) * 180 / math.Pi
	return lat, lng
}

// Angle returns the angle between the two points in radians.
func (p Point) Angle(o Point) float64 {
	return math.Atan2(r3.Norm(r3.Cross(p.Vec, o.Vec)), r3.Dot(p.Vec, o.Vec))
}

// ApproxEqual reports whether the two points are within a small angle of
// each other.
func (p Point) ApproxEqual(o Point) bool {
	return p.Angle(o) <= 1e-15
}
