// Package predicate provides the geometric predicates the Boolean kernel
// is built on. Every predicate returns the exact sign of its determinant
// for the given float64 inputs: a fast floating-point evaluation is
// trusted only when a forward error bound rules out a wrong sign, and the
// determinant is otherwise recomputed exactly with rational arithmetic.
// Callers never see which tier answered.
package predicate

import (
	"math"
	"math/big"
	"sync/atomic"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sign is the sign of a predicate determinant.
type Sign int

const (
	Negative Sign = -1
	Zero     Sign = 0
	Positive Sign = 1
)

func (s Sign) String() string {
	switch s {
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	default:
		return "zero"
	}
}

// Neg returns the opposite sign.
func (s Sign) Neg() Sign { return -s }

// epsilon is half an ulp of 1.0, the unit roundoff for float64.
const epsilon = 1.0 / (1 << 53)

// Forward error bounds of the fast tier (Shewchuk, "Adaptive Precision
// Floating-Point Arithmetic and Fast Robust Geometric Predicates").
var (
	ccwErrBound = (3.0 + 16.0*epsilon) * epsilon
	o3dErrBound = (7.0 + 56.0*epsilon) * epsilon
)

var exactCalls atomic.Uint64

// ExactCalls returns how many predicate evaluations needed the exact tier
// since the process started.
func ExactCalls() uint64 {
	return exactCalls.Load()
}

func signOf(x float64) Sign {
	switch {
	case x > 0:
		return Positive
	case x < 0:
		return Negative
	default:
		return Zero
	}
}

// Orient2D returns Positive if a, b, c are in counter-clockwise order,
// Negative if clockwise and Zero if collinear.
func Orient2D(a, b, c [2]float64) Sign {
	detLeft := (a[0] - c[0]) * (b[1] - c[1])
	detRight := (a[1] - c[1]) * (b[0] - c[0])
	det := detLeft - detRight

	bound := ccwErrBound * (math.Abs(detLeft) + math.Abs(detRight))
	if det > bound || -det > bound {
		return signOf(det)
	}
	exactCalls.Add(1)
	return orient2DExact(a, b, c)
}

// Orient3D returns Positive if d lies on the side of the plane through
// a, b, c that the right-handed normal (b-a)x(c-a) points to, Negative
// on the other side and Zero if the four points are coplanar. For a
// counter-clockwise outward-facing triangle, Positive means "outside".
func Orient3D(a, b, c, d v3.Vec) Sign {
	ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
	wx, wy, wz := d.X-a.X, d.Y-a.Y, d.Z-a.Z

	vywz, vzwy := vy*wz, vz*wy
	vzwx, vxwz := vz*wx, vx*wz
	vxwy, vywx := vx*wy, vy*wx

	det := ux*(vywz-vzwy) + uy*(vzwx-vxwz) + uz*(vxwy-vywx)
	permanent := math.Abs(ux)*(math.Abs(vywz)+math.Abs(vzwy)) +
		math.Abs(uy)*(math.Abs(vzwx)+math.Abs(vxwz)) +
		math.Abs(uz)*(math.Abs(vxwy)+math.Abs(vywx))

	bound := o3dErrBound * permanent
	if det > bound || -det > bound {
		return signOf(det)
	}
	exactCalls.Add(1)
	return orient3DExact(a, b, c, d)
}

// rat converts a finite float64 to an exact rational. Non-finite values
// map to zero so that the predicate still returns a definite answer.
func rat(x float64) *big.Rat {
	r := new(big.Rat)
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return r
	}
	return r.SetFloat64(x)
}

func sub(x, y float64) *big.Rat {
	return new(big.Rat).Sub(rat(x), rat(y))
}

func mul(x, y *big.Rat) *big.Rat {
	return new(big.Rat).Mul(x, y)
}

func orient2DExact(a, b, c [2]float64) Sign {
	acx, bcy := sub(a[0], c[0]), sub(b[1], c[1])
	acy, bcx := sub(a[1], c[1]), sub(b[0], c[0])
	det := new(big.Rat).Sub(mul(acx, bcy), mul(acy, bcx))
	return Sign(det.Sign())
}

func orient3DExact(a, b, c, d v3.Vec) Sign {
	ux, uy, uz := sub(b.X, a.X), sub(b.Y, a.Y), sub(b.Z, a.Z)
	vx, vy, vz := sub(c.X, a.X), sub(c.Y, a.Y), sub(c.Z, a.Z)
	wx, wy, wz := sub(d.X, a.X), sub(d.Y, a.Y), sub(d.Z, a.Z)

	m1 := new(big.Rat).Sub(mul(vy, wz), mul(vz, wy))
	m2 := new(big.Rat).Sub(mul(vz, wx), mul(vx, wz))
	m3 := new(big.Rat).Sub(mul(vx, wy), mul(vy, wx))

	det := mul(ux, m1)
	det.Add(det, mul(uy, m2))
	det.Add(det, mul(uz, m3))
	return Sign(det.Sign())
}
