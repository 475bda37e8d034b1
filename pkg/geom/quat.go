package geom

import (
	"fmt"
	"math"
)

// Quat is a rotation quaternion. The JSON form is {"x","y","z","w"}, independent
// of any engine's in-memory layout.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Identity is the zero rotation.
var Identity = Quat{W: 1}

// AxisAngle builds a rotation of deg degrees around axis.
func AxisAngle(axis Vec3, deg float64) Quat {
	n := axis.Magnitude()
	if n == 0 {
		return Identity
	}
	half := deg * math.Pi / 360
	s := math.Sin(half) / n
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math.Cos(half)}
}

func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.Dot(q))
}

// Normalize returns q scaled to unit length. The zero quaternion maps to Identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return Identity
	}
	return Quat{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

func (q Quat) neg() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
}

// Angle returns the angle in degrees between two rotations.
func Angle(a, b Quat) float64 {
	a = a.Normalize()
	b = b.Normalize()
	if a.Dot(b) < 0 {
		b = b.neg()
	}
	diff := Quat{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z, W: a.W - b.W}
	sum := Quat{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z, W: a.W + b.W}
	// atan2 form stays accurate for nearly identical rotations, unlike acos(dot).
	return 4 * math.Atan2(diff.Norm(), sum.Norm()) * 180 / math.Pi
}

// Slerp interpolates along the shortest arc between a and b.
func Slerp(a, b Quat, t float64) Quat {
	a = a.Normalize()
	b = b.Normalize()

	d := a.Dot(b)
	if d < 0 {
		b = b.neg()
		d = -d
	}

	// Nearly parallel: fall back to a normalized lerp to avoid dividing by sin(~0).
	if d > 0.9995 {
		return Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}.Normalize()
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta

	return Quat{
		X: a.X*wa + b.X*wb,
		Y: a.Y*wa + b.Y*wb,
		Z: a.Z*wa + b.Z*wb,
		W: a.W*wa + b.W*wb,
	}
}

func (q Quat) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", q.X, q.Y, q.Z, q.W)
}
