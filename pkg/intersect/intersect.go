// Package intersect builds the intersection curve between the two operands
// of a Boolean operation.
//
// The operands live in one merged mesh, told apart by triangle source.
// Every crossing of an edge of one operand through the interior of a
// triangle of the other becomes a curve point, identified by the pair
// (edge, triangle) rather than by its coordinates, so the two triangles on
// either side of the edge share it by construction. Each intersecting
// triangle pair contributes one segment joining its two crossing points,
// and the segments must close into loops.
//
// Any touching contact the generic rules cannot describe (coplanar
// overlap, a vertex on a face, an edge through an edge) is reported as
// kernel.ErrDegenerate so the caller can perturb and retry.
package intersect

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/predicate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// Point is a vertex of the intersection curve.
type Point struct {
	// Edge is the crossing edge, in merged-mesh vertex ids.
	Edge mesh.Edge
	// Tri is the triangle of the other operand the edge passes through.
	Tri int
	// T is the parameter of the crossing along Edge, from Edge[0] to
	// Edge[1].
	T float64
	// Pos is the crossing position in the mesh's frame.
	Pos v3.Vec
}

// Segment joins two curve points. A and B are the triangles whose
// intersection it is.
type Segment struct {
	P, Q int
	A, B int
}

// Curve is the full intersection curve.
type Curve struct {
	Points   []Point
	Segments []Segment
	// Loops lists the closed loops as point indices in traversal order.
	Loops [][]int
}

// Empty reports whether the operands do not intersect.
func (c *Curve) Empty() bool {
	return len(c.Points) == 0
}

// TriangleSegments groups segment indices by the triangles they lie in.
func (c *Curve) TriangleSegments() map[int][]int {
	out := make(map[int][]int)
	for i, s := range c.Segments {
		out[s.A] = append(out[s.A], i)
		out[s.B] = append(out[s.B], i)
	}
	return out
}

// EdgePoints groups point indices by the edge they lie on.
func (c *Curve) EdgePoints() map[mesh.Edge][]int {
	out := make(map[mesh.Edge][]int)
	for i, p := range c.Points {
		out[p.Edge] = append(out[p.Edge], i)
	}
	return out
}

// FacePoints groups point indices by the triangle whose interior they lie
// in.
func (c *Curve) FacePoints() map[int][]int {
	out := make(map[int][]int)
	for i, p := range c.Points {
		out[p.Tri] = append(out[p.Tri], i)
	}
	return out
}

// Options tunes Build.
type Options struct {
	// Workers bounds the number of goroutines testing crossings. Zero
	// means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// key identifies a potential curve point.
type key struct {
	edge mesh.Edge
	tri  int
}

func compareKeys(a, b key) int {
	if c := mesh.CompareEdges(a.edge, b.edge); c != 0 {
		return c
	}
	return cmp.Compare(a.tri, b.tri)
}

type pair struct {
	a, b int
}

type crossing struct {
	hit bool
	t   float64
	pos v3.Vec
}

// chunk is the number of crossing tests handed to one goroutine.
const chunk = 256

// Build computes the intersection curve between the SourceA and SourceB
// triangles of m.
func Build(ctx context.Context, m *mesh.Mesh, opts Options) (*Curve, error) {
	log := opts.logger()

	pairs := candidatePairs(m)
	keys := pairKeys(m, pairs)
	log.Debug("intersect: candidates", "pairs", len(pairs), "tests", len(keys))

	results := make([]crossing, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for lo := 0; lo < len(keys); lo += chunk {
		hi := min(lo+chunk, len(keys))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				c, err := evaluate(m, keys[i])
				if err != nil {
					return err
				}
				results[i] = c
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	curve := &Curve{}
	index := make(map[key]int)
	for i, k := range keys {
		if !results[i].hit {
			continue
		}
		index[k] = len(curve.Points)
		curve.Points = append(curve.Points, Point{
			Edge: k.edge,
			Tri:  k.tri,
			T:    results[i].t,
			Pos:  results[i].pos,
		})
	}

	for _, p := range pairs {
		var hits []int
		for _, k := range keysOf(m, p) {
			if i, ok := index[k]; ok {
				hits = append(hits, i)
			}
		}
		switch len(hits) {
		case 0:
		case 2:
			curve.Segments = append(curve.Segments, Segment{P: hits[0], Q: hits[1], A: p.a, B: p.b})
		default:
			return nil, &kernel.IntersectionTopologyError{
				Message: fmt.Sprintf("triangles %d and %d meet in %d crossing points", p.a, p.b, len(hits)),
			}
		}
	}

	loops, err := linkLoops(curve)
	if err != nil {
		return nil, err
	}
	curve.Loops = loops
	log.Debug("intersect: curve",
		"points", len(curve.Points),
		"segments", len(curve.Segments),
		"loops", len(curve.Loops))
	return curve, nil
}

// candidatePairs returns every (A, B) triangle pair whose boxes meet, in
// lexicographic order.
func candidatePairs(m *mesh.Mesh) []pair {
	pad := padding(m)
	ix := mesh.NewIndex(m, pad, func(t int) bool {
		return m.Triangles[t].Source == mesh.SourceB
	})
	var out []pair
	for ta, tri := range m.Triangles {
		if tri.Source != mesh.SourceA {
			continue
		}
		for _, tb := range ix.Search(m.TriangleBounds(ta)) {
			out = append(out, pair{a: ta, b: tb})
		}
	}
	return out
}

// padding grows triangle boxes so that contact on a box face is still a
// candidate. It is relative to the model size.
func padding(m *mesh.Mesh) float64 {
	return max(m.Bounds().Diagonal()*1e-6, 1e-300)
}

// keysOf lists the six edge/triangle tests of a pair: each edge of a
// against b, then each edge of b against a.
func keysOf(m *mesh.Mesh, p pair) [6]key {
	ea := m.Triangles[p.a].Edges()
	eb := m.Triangles[p.b].Edges()
	return [6]key{
		{ea[0], p.b}, {ea[1], p.b}, {ea[2], p.b},
		{eb[0], p.a}, {eb[1], p.a}, {eb[2], p.a},
	}
}

// pairKeys returns the distinct tests of all pairs, sorted.
func pairKeys(m *mesh.Mesh, pairs []pair) []key {
	seen := make(map[key]struct{}, len(pairs)*6)
	var out []key
	for _, p := range pairs {
		for _, k := range keysOf(m, p) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	slices.SortFunc(out, compareKeys)
	return out
}

func evaluate(m *mesh.Mesh, k key) (crossing, error) {
	p, q := m.Positions[k.edge[0]], m.Positions[k.edge[1]]
	a, b, c := m.Corners(k.tri)
	switch predicate.SegmentTriangle(p, q, a, b, c) {
	case predicate.NoCrossing:
		return crossing{}, nil
	case predicate.Degenerate:
		return crossing{}, fmt.Errorf("edge (%d,%d) touches triangle %d: %w",
			k.edge[0], k.edge[1], k.tri, kernel.ErrDegenerate)
	}
	n := b.Sub(a).Cross(c.Sub(a))
	d := q.Sub(p)
	t := n.Dot(a.Sub(p)) / n.Dot(d)
	t = min(max(t, 0), 1)
	return crossing{hit: true, t: t, pos: p.Add(d.MulScalar(t))}, nil
}

// linkLoops checks that every point has exactly two segments and walks the
// segments into closed loops, starting each loop at its lowest point.
func linkLoops(c *Curve) ([][]int, error) {
	incident := make([][]int, len(c.Points))
	for i, s := range c.Segments {
		incident[s.P] = append(incident[s.P], i)
		incident[s.Q] = append(incident[s.Q], i)
	}
	for i, segs := range incident {
		if len(segs) != 2 {
			p := c.Points[i]
			return nil, &kernel.IntersectionTopologyError{
				Message: fmt.Sprintf("curve point on edge (%d,%d) through triangle %d has %d segments, want 2",
					p.Edge[0], p.Edge[1], p.Tri, len(segs)),
			}
		}
	}

	used := make([]bool, len(c.Segments))
	visited := make([]bool, len(c.Points))
	var loops [][]int
	for start := range c.Points {
		if visited[start] {
			continue
		}
		loop := []int{start}
		visited[start] = true
		cur := start
		for {
			var next int
			seg := -1
			for _, s := range incident[cur] {
				if !used[s] {
					seg = s
					break
				}
			}
			if seg < 0 {
				break
			}
			used[seg] = true
			if s := c.Segments[seg]; s.P == cur {
				next = s.Q
			} else {
				next = s.P
			}
			if next == start {
				break
			}
			visited[next] = true
			loop = append(loop, next)
			cur = next
		}
		loops = append(loops, loop)
	}
	return loops, nil
}
