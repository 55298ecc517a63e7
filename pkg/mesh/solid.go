package mesh

import (
	"fmt"
)

// CheckSolid verifies the solidity precondition: every triangle has three
// distinct vertices, every edge is used by exactly two triangles that
// traverse it in opposite directions, and the triangles around every
// vertex form a single fan (no pinched vertices). It returns nil for a
// solid mesh and a descriptive error otherwise.
//
// Self-intersection is not checked here; it surfaces later as an
// intersection or stitching error.
func CheckSolid(m *Mesh) error {
	if len(m.Triangles) == 0 {
		return fmt.Errorf("mesh has no triangles")
	}
	for ti, t := range m.Triangles {
		if t.V[0] == t.V[1] || t.V[1] == t.V[2] || t.V[2] == t.V[0] {
			return fmt.Errorf("triangle %d repeats a vertex", ti)
		}
	}

	directed := make(map[[2]int]int, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		for i := 0; i < 3; i++ {
			directed[[2]int{t.V[i], t.V[(i+1)%3]}]++
		}
	}
	for _, t := range m.Triangles {
		for i := 0; i < 3; i++ {
			a, b := t.V[i], t.V[(i+1)%3]
			if n := directed[[2]int{a, b}]; n > 1 {
				return fmt.Errorf("edge (%d,%d) is traversed %d times in the same direction", a, b, n)
			}
			if directed[[2]int{b, a}] != 1 {
				return fmt.Errorf("edge (%d,%d) has no oppositely wound partner", a, b)
			}
		}
	}

	for v, tris := range m.VertexTriangles() {
		if len(tris) == 0 {
			continue
		}
		if !singleFan(m, v, tris) {
			return fmt.Errorf("vertex %d is not manifold", v)
		}
	}
	return nil
}

// IsSolid reports whether CheckSolid passes.
func IsSolid(m *Mesh) bool {
	return CheckSolid(m) == nil
}

// singleFan reports whether the triangles around v link into one cycle.
// Each incident triangle contributes the directed link edge a->b of the
// corners following v in winding order.
func singleFan(m *Mesh, v int, tris []int) bool {
	next := make(map[int]int, len(tris))
	for _, ti := range tris {
		t := m.Triangles[ti]
		for i := 0; i < 3; i++ {
			if t.V[i] == v {
				next[t.V[(i+1)%3]] = t.V[(i+2)%3]
			}
		}
	}
	if len(next) != len(tris) {
		return false
	}
	start := m.Triangles[tris[0]]
	var cur int
	for i := 0; i < 3; i++ {
		if start.V[i] == v {
			cur = start.V[(i+1)%3]
		}
	}
	steps := 0
	first := cur
	for {
		n, ok := next[cur]
		if !ok {
			return false
		}
		cur = n
		steps++
		if cur == first {
			break
		}
		if steps > len(tris) {
			return false
		}
	}
	return steps == len(tris)
}
