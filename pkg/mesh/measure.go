package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max v3.Vec
}

// EmptyBox returns a box that contains nothing; extending it with any
// point yields that point.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// Include returns the box grown to contain p.
func (b Box) Include(p v3.Vec) Box {
	return Box{
		Min: v3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: v3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box containing b and o.
func (b Box) Union(o Box) Box {
	return b.Include(o.Min).Include(o.Max)
}

// Diagonal returns the length of the box diagonal, or 0 for an empty box.
func (b Box) Diagonal() float64 {
	if b.Min.X > b.Max.X {
		return 0
	}
	return b.Max.Sub(b.Min).Length()
}

// Overlaps reports whether the closed boxes share at least one point.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Bounds returns the bounding box of every vertex position.
func (m *Mesh) Bounds() Box {
	b := EmptyBox()
	for _, p := range m.Positions {
		b = b.Include(p)
	}
	return b
}

// TriangleBounds returns the bounding box of triangle t.
func (m *Mesh) TriangleBounds(t int) Box {
	a, b, c := m.Corners(t)
	return EmptyBox().Include(a).Include(b).Include(c)
}

// TriangleArea returns the area of triangle t.
func (m *Mesh) TriangleArea(t int) float64 {
	a, b, c := m.Corners(t)
	return b.Sub(a).Cross(c.Sub(a)).Length() / 2
}

// Centroid returns the centroid of triangle t.
func (m *Mesh) Centroid(t int) v3.Vec {
	a, b, c := m.Corners(t)
	return a.Add(b).Add(c).MulScalar(1.0 / 3.0)
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	return lo.SumBy(lo.Range(len(m.Triangles)), m.TriangleArea)
}

// Volume returns the signed enclosed volume. It is positive for a closed
// mesh wound counter-clockwise when seen from outside.
func (m *Mesh) Volume() float64 {
	var vol float64
	for t := range m.Triangles {
		a, b, c := m.Corners(t)
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}
