package subdivide

import (
	"fmt"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/predicate"
)

// triangulation is a planar triangulation of one parent triangle, in
// local vertex ids. Removed triangles keep their slot with a -1 marker so
// the output order only depends on the sequence of edits.
type triangulation struct {
	ids   []int          // local -> mesh vertex id
	local map[int]int    // mesh vertex id -> local
	pts   [][2]float64   // projected positions
	tris  [][3]int       // counter-clockwise
	owner map[[2]int]int // directed edge -> triangle
}

func newTriangulation() *triangulation {
	return &triangulation{
		local: make(map[int]int),
		owner: make(map[[2]int]int),
	}
}

func (t *triangulation) addVertex(id int, p [2]float64) int {
	if l, ok := t.local[id]; ok {
		return l
	}
	t.ids = append(t.ids, id)
	t.pts = append(t.pts, p)
	t.local[id] = len(t.ids) - 1
	return len(t.ids) - 1
}

func (t *triangulation) add(v [3]int) {
	idx := len(t.tris)
	t.tris = append(t.tris, v)
	for i := 0; i < 3; i++ {
		t.owner[[2]int{v[i], v[(i+1)%3]}] = idx
	}
}

func (t *triangulation) remove(idx int) {
	v := t.tris[idx]
	for i := 0; i < 3; i++ {
		delete(t.owner, [2]int{v[i], v[(i+1)%3]})
	}
	t.tris[idx] = [3]int{-1, -1, -1}
}

// apex returns the triangle left of the directed edge a->b and its third
// vertex.
func (t *triangulation) apex(a, b int) (c, idx int, ok bool) {
	idx, ok = t.owner[[2]int{a, b}]
	if !ok {
		return 0, 0, false
	}
	v := t.tris[idx]
	for i := 0; i < 3; i++ {
		if v[i] == a {
			return v[(i+2)%3], idx, true
		}
	}
	return 0, 0, false
}

func (t *triangulation) hasEdge(a, b int) bool {
	_, ok1 := t.owner[[2]int{a, b}]
	_, ok2 := t.owner[[2]int{b, a}]
	return ok1 || ok2
}

// splitEdge inserts p on edge a-b, splitting the triangles on both sides.
// It reports false if no triangle uses the edge.
func (t *triangulation) splitEdge(a, b, p int) bool {
	found := false
	if c, idx, ok := t.apex(a, b); ok {
		t.remove(idx)
		t.add([3]int{a, p, c})
		t.add([3]int{p, b, c})
		found = true
	}
	if d, idx, ok := t.apex(b, a); ok {
		t.remove(idx)
		t.add([3]int{b, p, d})
		t.add([3]int{p, a, d})
		found = true
	}
	return found
}

func (t *triangulation) orient(a, b, c int) predicate.Sign {
	return predicate.Orient2D(t.pts[a], t.pts[b], t.pts[c])
}

// insert adds an interior point, splitting the face that contains it into
// three, or the two faces beside the internal edge it lies on into four.
func (t *triangulation) insert(p int) error {
	for idx, v := range t.tris {
		if v[0] < 0 {
			continue
		}
		var zeros []int
		inside := true
		for i := 0; i < 3; i++ {
			switch t.orient(v[i], v[(i+1)%3], p) {
			case predicate.Negative:
				inside = false
			case predicate.Zero:
				zeros = append(zeros, i)
			}
		}
		if !inside {
			continue
		}
		switch len(zeros) {
		case 0:
			t.remove(idx)
			t.add([3]int{v[0], v[1], p})
			t.add([3]int{v[1], v[2], p})
			t.add([3]int{v[2], v[0], p})
			return nil
		case 1:
			a, b := v[zeros[0]], v[(zeros[0]+1)%3]
			if _, _, ok := t.apex(b, a); !ok {
				return fmt.Errorf("interior point on parent boundary: %w", kernel.ErrDegenerate)
			}
			t.splitEdge(a, b, p)
			return nil
		default:
			return fmt.Errorf("interior point on a vertex: %w", kernel.ErrDegenerate)
		}
	}
	return fmt.Errorf("interior point outside parent: %w", kernel.ErrDegenerate)
}

// crosses reports whether segments u-w and a-b cross at a single point
// interior to both.
func (t *triangulation) crosses(u, w, a, b int) bool {
	if a == u || a == w || b == u || b == w {
		return false
	}
	s1, s2 := t.orient(u, w, a), t.orient(u, w, b)
	if s1 == predicate.Zero || s1 != s2.Neg() {
		return false
	}
	s3, s4 := t.orient(a, b, u), t.orient(a, b, w)
	return s3 != predicate.Zero && s3 == s4.Neg()
}

// onSegment reports whether v lies on the open segment u-w.
func (t *triangulation) onSegment(u, w, v int) bool {
	if v == u || v == w || t.orient(u, w, v) != predicate.Zero {
		return false
	}
	pu, pw, pv := t.pts[u], t.pts[w], t.pts[v]
	dx, dy := pw[0]-pu[0], pw[1]-pu[1]
	s := (pv[0]-pu[0])*dx + (pv[1]-pu[1])*dy
	return s > 0 && s < dx*dx+dy*dy
}

// recover makes u-w an edge by flipping the edges that cross it (Sloan,
// "A fast algorithm for generating constrained Delaunay triangulations").
// Previously recovered segments never cross u-w, so they are never
// flipped.
func (t *triangulation) recover(u, w int) error {
	if t.hasEdge(u, w) {
		return nil
	}
	for v := range t.pts {
		if t.onSegment(u, w, v) {
			return fmt.Errorf("vertex on curve segment: %w", kernel.ErrDegenerate)
		}
	}

	var queue [][2]int
	for _, v := range t.tris {
		if v[0] < 0 {
			continue
		}
		for i := 0; i < 3; i++ {
			a, b := v[i], v[(i+1)%3]
			if a > b || !t.crosses(u, w, a, b) {
				continue
			}
			queue = append(queue, [2]int{a, b})
		}
	}
	// A crossing edge without a partner would be on the parent boundary.
	for _, e := range queue {
		if _, _, ok := t.apex(e[1], e[0]); !ok {
			return fmt.Errorf("curve segment leaves parent: %w", kernel.ErrDegenerate)
		}
		if _, _, ok := t.apex(e[0], e[1]); !ok {
			return fmt.Errorf("curve segment leaves parent: %w", kernel.ErrDegenerate)
		}
	}

	limit := 16*len(t.pts)*len(t.pts) + 64
	for iter := 0; len(queue) > 0; iter++ {
		if iter > limit {
			return fmt.Errorf("edge flipping did not converge: %w", kernel.ErrDegenerate)
		}
		e := queue[0]
		queue = queue[1:]
		a, b := e[0], e[1]
		c, i1, ok1 := t.apex(a, b)
		d, i2, ok2 := t.apex(b, a)
		if !ok1 || !ok2 {
			return fmt.Errorf("crossing edge vanished: %w", kernel.ErrDegenerate)
		}
		// Only a strictly convex quadrilateral can be flipped.
		s1, s2 := t.orient(c, d, a), t.orient(c, d, b)
		if s1 == predicate.Zero || s1 != s2.Neg() {
			queue = append(queue, e)
			continue
		}
		t.remove(i1)
		t.remove(i2)
		t.add([3]int{a, d, c})
		t.add([3]int{d, b, c})
		if t.crosses(u, w, c, d) {
			queue = append(queue, [2]int{c, d})
		}
	}
	if !t.hasEdge(u, w) {
		return fmt.Errorf("curve segment not recovered: %w", kernel.ErrDegenerate)
	}
	return nil
}
