package combine

import (
	"fmt"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Stitch welds the selected triangles into the output soup and validates
// it for op.
//
// Vertices are welded by identity: curve vertices are shared by both
// operands by construction, so no positional merging is needed and
// coincident but distinct vertices stay apart. Unreferenced vertices are
// dropped and the rest renumbered in order of first use.
//
// Union, difference and intersection must come out 2-manifold. A
// symmetric difference keeps all four sheets along the curve, so it is
// only required to be closed: every edge used equally often in each
// direction, at most twice.
func Stitch(op Op, positions []v3.Vec, tris []mesh.Triangle) (*kernel.Mesh, error) {
	km := (&mesh.Mesh{Positions: positions, Triangles: tris}).ToKernel()
	switch {
	case op == SymmetricDifference:
		if err := validateBalanced(km); err != nil {
			return nil, err
		}
	case op.Closed():
		if err := validateClosed(km); err != nil {
			return nil, err
		}
	case op.Cut():
		if err := validateOpen(km); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// CheckRounding reports kernel.ErrDegenerate when rounding the selected
// triangles to float32 collapses geometry that involves a curve vertex:
// a curve vertex landing on another vertex, or a triangle through one
// losing all of its area. Vertices from firstCurve on are curve vertices.
func CheckRounding(positions []v3.Vec, firstCurve int, tris []mesh.Triangle) error {
	seen := make(map[[3]float32]int, len(tris))
	for ti, t := range tris {
		var p [3][3]float32
		onCurve := false
		for i, v := range t.V {
			q := positions[v]
			p[i] = [3]float32{float32(q.X), float32(q.Y), float32(q.Z)}
			onCurve = onCurve || v >= firstCurve
			other, ok := seen[p[i]]
			if !ok {
				seen[p[i]] = v
				continue
			}
			if other != v && (v >= firstCurve || other >= firstCurve) {
				return fmt.Errorf("vertices %d and %d round to one position: %w", other, v, kernel.ErrDegenerate)
			}
		}
		if onCurve && flat(p) {
			return fmt.Errorf("triangle %d has no area after rounding: %w", ti, kernel.ErrDegenerate)
		}
	}
	return nil
}

// flat reports whether three float32 points are collinear. Differences of
// float32 values and their pairwise products are exact in float64, so the
// cross product is zero only for truly collinear points.
func flat(p [3][3]float32) bool {
	var u, w [3]float64
	for i := range 3 {
		u[i] = float64(p[1][i]) - float64(p[0][i])
		w[i] = float64(p[2][i]) - float64(p[0][i])
	}
	return u[1]*w[2]-u[2]*w[1] == 0 &&
		u[2]*w[0]-u[0]*w[2] == 0 &&
		u[0]*w[1]-u[1]*w[0] == 0
}

func directedEdges(km *kernel.Mesh) map[[2]uint32]int {
	counts := make(map[[2]uint32]int, len(km.Indices))
	for t := 0; t < km.TriangleCount(); t++ {
		tri := km.Triangle(t)
		for i := 0; i < 3; i++ {
			counts[[2]uint32{tri[i], tri[(i+1)%3]}]++
		}
	}
	return counts
}

// validateClosed requires every edge to be used once in each direction.
func validateClosed(km *kernel.Mesh) error {
	counts := directedEdges(km)
	for t := 0; t < km.TriangleCount(); t++ {
		tri := km.Triangle(t)
		for i := 0; i < 3; i++ {
			a, b := tri[i], tri[(i+1)%3]
			fwd, rev := counts[[2]uint32{a, b}], counts[[2]uint32{b, a}]
			switch {
			case fwd > 1:
				return &kernel.NonManifoldResultError{Edge: [2]uint32{a, b}, Incident: fwd + rev,
					Message: "edge traversed twice in the same direction"}
			case rev == 0:
				return &kernel.NonManifoldResultError{Edge: [2]uint32{a, b}, Incident: fwd,
					Message: "boundary edge in closed result"}
			case rev > 1:
				return &kernel.NonManifoldResultError{Edge: [2]uint32{a, b}, Incident: fwd + rev,
					Message: "edge shared by more than two triangles"}
			}
		}
	}
	return nil
}

// validateOpen allows boundary edges but no edge with more than two
// triangles or two triangles wound the same way.
func validateOpen(km *kernel.Mesh) error {
	counts := directedEdges(km)
	for t := 0; t < km.TriangleCount(); t++ {
		tri := km.Triangle(t)
		for i := 0; i < 3; i++ {
			a, b := tri[i], tri[(i+1)%3]
			fwd, rev := counts[[2]uint32{a, b}], counts[[2]uint32{b, a}]
			if fwd > 1 || rev > 1 {
				return &kernel.NonManifoldResultError{Edge: [2]uint32{a, b}, Incident: fwd + rev,
					Message: "edge shared by more than two triangles or wound inconsistently"}
			}
		}
	}
	return nil
}

// validateBalanced requires every edge to be used as often in one
// direction as in the other, and by at most four triangles.
func validateBalanced(km *kernel.Mesh) error {
	counts := directedEdges(km)
	for t := 0; t < km.TriangleCount(); t++ {
		tri := km.Triangle(t)
		for i := 0; i < 3; i++ {
			a, b := tri[i], tri[(i+1)%3]
			fwd, rev := counts[[2]uint32{a, b}], counts[[2]uint32{b, a}]
			if fwd != rev || fwd > 2 {
				return &kernel.NonManifoldResultError{Edge: [2]uint32{a, b}, Incident: fwd + rev,
					Message: "edge not matched by oppositely wound triangles"}
			}
		}
	}
	return nil
}
