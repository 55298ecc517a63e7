// Package subdivide retriangulates both operands along the intersection
// curve so that every curve segment becomes an edge shared by the two
// surfaces.
//
// Each crossed triangle is projected to the coordinate plane its normal
// is most aligned with. Curve points on its edges are inserted by
// splitting those edges, in an order computed once per edge so the
// neighbour across the edge produces the same sub-edges. Curve points
// inside it are inserted by splitting the face (or an internal edge), and
// each curve segment is then recovered as an edge by Sloan's edge
// flipping. All orientation decisions use the exact 2D predicate.
package subdivide

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/chazu/cork/pkg/intersect"
	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/predicate"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Result is a subdivided mesh.
type Result struct {
	// Mesh holds the input vertices followed by one vertex per curve
	// point; curve point i has vertex id PointBase+i.
	Mesh      *mesh.Mesh
	PointBase int
	// CurveEdges are the edges lying on the intersection curve.
	CurveEdges map[mesh.Edge]bool
	// Split counts the input triangles that were retriangulated.
	Split int
}

// Subdivide retriangulates m along c. Triangles the curve does not touch
// are copied unchanged and every triangle keeps its source and winding.
func Subdivide(m *mesh.Mesh, c *intersect.Curve) (*Result, error) {
	base := len(m.Positions)
	out := mesh.New(base+len(c.Points), len(m.Triangles)+8*len(c.Segments))
	out.Positions = append(out.Positions, m.Positions...)
	for _, p := range c.Points {
		out.Positions = append(out.Positions, p.Pos)
	}

	edgePoints := c.EdgePoints()
	for _, pts := range edgePoints {
		slices.SortFunc(pts, func(i, j int) int {
			if d := cmp.Compare(c.Points[i].T, c.Points[j].T); d != 0 {
				return d
			}
			return cmp.Compare(i, j)
		})
	}
	facePoints := c.FacePoints()
	triSegs := c.TriangleSegments()

	res := &Result{
		Mesh:       out,
		PointBase:  base,
		CurveEdges: make(map[mesh.Edge]bool, len(c.Segments)),
	}
	for _, s := range c.Segments {
		res.CurveEdges[mesh.MakeEdge(base+s.P, base+s.Q)] = true
	}

	for ti, tri := range m.Triangles {
		touched := len(triSegs[ti]) > 0 || len(facePoints[ti]) > 0
		for _, e := range tri.Edges() {
			touched = touched || len(edgePoints[e]) > 0
		}
		if !touched {
			out.AddTriangle(tri)
			continue
		}
		pieces, err := split(out, tri, base, edgePoints, facePoints[ti], c.Segments, triSegs[ti])
		if err != nil {
			return nil, fmt.Errorf("triangle %d: %w", ti, err)
		}
		for _, p := range pieces {
			out.AddTriangle(p)
		}
		res.Split++
	}
	return res, nil
}

// split retriangulates one triangle. Positions in m already include the
// curve points.
func split(m *mesh.Mesh, tri mesh.Triangle, base int, edgePoints map[mesh.Edge][]int,
	facePoints []int, segs []intersect.Segment, own []int) ([]mesh.Triangle, error) {

	proj := newProjection(m, tri)
	t := newTriangulation()
	for _, v := range tri.V {
		t.addVertex(v, proj.apply(m.Positions[v]))
	}
	t.add([3]int{0, 1, 2})
	if predicate.Orient2D(t.pts[0], t.pts[1], t.pts[2]) != predicate.Positive {
		return nil, fmt.Errorf("parent is flat in projection: %w", kernel.ErrDegenerate)
	}

	for i := 0; i < 3; i++ {
		u, w := tri.V[i], tri.V[(i+1)%3]
		pts := edgePoints[mesh.MakeEdge(u, w)]
		if len(pts) == 0 {
			continue
		}
		ordered := slices.Clone(pts)
		if u > w {
			slices.Reverse(ordered)
		}
		prev, last := i, (i+1)%3
		for _, p := range ordered {
			g := base + p
			lp := t.addVertex(g, proj.apply(m.Positions[g]))
			if !t.splitEdge(prev, last, lp) {
				return nil, fmt.Errorf("boundary edge lost: %w", kernel.ErrDegenerate)
			}
			prev = lp
		}
	}

	for _, p := range facePoints {
		g := base + p
		lp := t.addVertex(g, proj.apply(m.Positions[g]))
		if err := t.insert(lp); err != nil {
			return nil, err
		}
	}

	for _, si := range own {
		s := segs[si]
		u, ok1 := t.local[base+s.P]
		w, ok2 := t.local[base+s.Q]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("segment %d endpoint not in triangle: %w", si, kernel.ErrDegenerate)
		}
		if err := t.recover(u, w); err != nil {
			return nil, err
		}
	}

	var out []mesh.Triangle
	for _, lt := range t.tris {
		if lt[0] < 0 {
			continue
		}
		if predicate.Orient2D(t.pts[lt[0]], t.pts[lt[1]], t.pts[lt[2]]) != predicate.Positive {
			return nil, fmt.Errorf("inverted piece: %w", kernel.ErrDegenerate)
		}
		out = append(out, mesh.Triangle{
			V:      [3]int{t.ids[lt[0]], t.ids[lt[1]], t.ids[lt[2]]},
			Source: tri.Source,
		})
	}
	return out, nil
}

// projection drops the coordinate the triangle normal is most aligned
// with, ordering the other two so the triangle stays counter-clockwise.
type projection struct {
	i, j int
}

func newProjection(m *mesh.Mesh, tri mesh.Triangle) projection {
	a, b, c := m.Positions[tri.V[0]], m.Positions[tri.V[1]], m.Positions[tri.V[2]]
	n := b.Sub(a).Cross(c.Sub(a))
	comps := [3]float64{n.X, n.Y, n.Z}
	k := 0
	for axis := 1; axis < 3; axis++ {
		if math.Abs(comps[axis]) > math.Abs(comps[k]) {
			k = axis
		}
	}
	p := projection{i: (k + 1) % 3, j: (k + 2) % 3}
	if comps[k] < 0 {
		p.i, p.j = p.j, p.i
	}
	return p
}

func (p projection) apply(v v3.Vec) [2]float64 {
	c := [3]float64{v.X, v.Y, v.Z}
	return [2]float64{c[p.i], c[p.j]}
}
