// Package classify groups the triangles of a subdivided mesh into patches
// and decides for every patch whether it lies inside or outside the other
// operand.
//
// A patch is a maximal set of same-operand triangles connected across
// edges that are not on the intersection curve, so it is entirely inside
// or entirely outside the other solid. One triangle per patch is tested
// by casting a ray from its centroid and counting exact crossings with
// the other operand's surface.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/predicate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Patch is a connected region of one operand's surface.
type Patch struct {
	Source    mesh.Source
	Triangles []int
	// Representative is the triangle whose centroid was ray-tested.
	Representative int
	// Inside reports whether the patch lies inside the other operand.
	Inside bool
}

// Result is the classification of every triangle.
type Result struct {
	Patches []Patch
	// PatchOf maps a triangle to its patch index.
	PatchOf []int
}

// Count returns the number of patches from src.
func (r *Result) Count(src mesh.Source) int {
	return lo.CountBy(r.Patches, func(p Patch) bool { return p.Source == src })
}

// Options tunes Classify.
type Options struct {
	// Workers bounds the number of goroutines casting rays. Zero means
	// GOMAXPROCS.
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

// directions are the ray directions tried in turn when a ray grazes an
// edge or vertex. None is parallel to a coordinate plane.
var directions = []v3.Vec{
	{X: 0.7548776662, Y: 0.5698402910, Z: 0.3247179572},
	{X: -0.4110529312, Y: 0.8293842911, Z: 0.3782461215},
	{X: 0.2671863904, Y: -0.3510979126, Z: 0.8974103316},
	{X: -0.6387402188, Y: -0.5283910387, Z: -0.5590132751},
	{X: 0.5123047915, Y: -0.7801931145, Z: -0.3589432071},
	{X: -0.1973551983, Y: 0.2471988350, Z: -0.9486583042},
	{X: 0.9012473316, Y: 0.1838402285, Z: -0.3925013740},
	{X: -0.8441102874, Y: -0.2014799135, Z: 0.4968432275},
}

// Classify partitions m into patches and classifies each one against the
// other operand. curve holds the edges that patches must not cross.
func Classify(ctx context.Context, m *mesh.Mesh, curve map[mesh.Edge]bool, opts Options) (*Result, error) {
	res := patches(m, curve)
	log := opts.logger()

	bounds := m.Bounds()
	reach := 2*bounds.Diagonal() + 1
	pad := max(bounds.Diagonal()*1e-6, 1e-300)
	indexes := [2]*mesh.Index{}
	for _, src := range []mesh.Source{mesh.SourceA, mesh.SourceB} {
		indexes[src] = mesh.NewIndex(m, pad, func(t int) bool {
			return m.Triangles[t].Source == src
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := range res.Patches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := &res.Patches[i]
			p.Representative = lo.MaxBy(p.Triangles, func(a, b int) bool {
				return m.TriangleArea(a) > m.TriangleArea(b)
			})
			in, err := inside(m, indexes[p.Source.Other()], m.Centroid(p.Representative), reach)
			if err != nil {
				return fmt.Errorf("patch %d: %w", i, err)
			}
			p.Inside = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("classify: patches",
		"a", res.Count(mesh.SourceA),
		"b", res.Count(mesh.SourceB),
		"inside", lo.CountBy(res.Patches, func(p Patch) bool { return p.Inside }))
	return res, nil
}

// patches flood-fills same-source triangles across non-curve edges.
// Patches are numbered in order of their lowest triangle.
func patches(m *mesh.Mesh, curve map[mesh.Edge]bool) *Result {
	em := m.BuildEdgeMap()
	res := &Result{PatchOf: make([]int, len(m.Triangles))}
	for i := range res.PatchOf {
		res.PatchOf[i] = -1
	}
	for seed := range m.Triangles {
		if res.PatchOf[seed] >= 0 {
			continue
		}
		id := len(res.Patches)
		src := m.Triangles[seed].Source
		p := Patch{Source: src}
		stack := []int{seed}
		res.PatchOf[seed] = id
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p.Triangles = append(p.Triangles, t)
			for _, e := range m.Triangles[t].Edges() {
				if curve[e] {
					continue
				}
				for _, n := range em[e] {
					if res.PatchOf[n] < 0 && m.Triangles[n].Source == src {
						res.PatchOf[n] = id
						stack = append(stack, n)
					}
				}
			}
		}
		res.Patches = append(res.Patches, p)
	}
	return res
}

// inside reports whether p is inside the closed surface indexed by ix, by
// the parity of exact ray crossings. A ray that touches an edge or vertex
// is discarded for the next direction.
func inside(m *mesh.Mesh, ix *mesh.Index, p v3.Vec, reach float64) (bool, error) {
	if ix.Size() == 0 {
		return false, nil
	}
	for _, d := range directions {
		far := p.Add(d.MulScalar(reach))
		crossings := 0
		clean := true
		for _, t := range ix.SearchSegment(p, far) {
			a, b, c := m.Corners(t)
			switch predicate.SegmentTriangle(p, far, a, b, c) {
			case predicate.Crosses:
				crossings++
			case predicate.Degenerate:
				clean = false
			}
			if !clean {
				break
			}
		}
		if clean {
			return crossings%2 == 1, nil
		}
	}
	return false, fmt.Errorf("every ray direction grazes the surface: %w", kernel.ErrDegenerate)
}
