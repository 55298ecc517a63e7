// Package kernel defines the abstract mesh Boolean kernel interface,
// the triangle soup it exchanges with callers, and the error taxonomy
// shared by every pipeline stage. The exact implementation lives in
// package boolean; the abstraction lets tools layered above it (the
// script engine, the command-line driver) stay independent of it.
package kernel

// Kernel is the abstract Boolean kernel interface.
//
// Inputs must be solid: closed, 2-manifold, non-self-intersecting and
// wound counter-clockwise. Inputs are never mutated; every successful
// call returns a freshly allocated mesh owned by the caller. On error
// the returned mesh is nil.
type Kernel interface {
	// IsSolid reports whether m is closed, 2-manifold and consistently
	// oriented.
	IsSolid(m *Mesh) bool

	// Boolean operations
	Union(a, b *Mesh) (*Mesh, error)
	Difference(a, b *Mesh) (*Mesh, error) // a - b
	Intersection(a, b *Mesh) (*Mesh, error)
	SymmetricDifference(a, b *Mesh) (*Mesh, error)

	// Cut variants keep only geometry from a; b only decides which
	// parts of a survive.
	CutDifference(a, b *Mesh) (*Mesh, error)
	CutIntersection(a, b *Mesh) (*Mesh, error)

	// ResolveIntersections deletes nothing; it makes the intersection
	// curve explicit so both surfaces share its edges.
	ResolveIntersections(a, b *Mesh) (*Mesh, error)
}
