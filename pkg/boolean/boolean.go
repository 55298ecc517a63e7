// Package boolean is the exact mesh Boolean kernel. It runs the pipeline
// intersect, subdivide, classify, combine and stitch over two solid
// triangle meshes and returns a new watertight mesh.
//
// Degenerate contact between the operands (shared planes, touching
// vertices or edges) is resolved by a fixed policy: the pipeline is rerun
// with B shrunk toward the center of its bounding box by a tiny,
// deterministic amount per axis. A convex B touching A from any side is
// pulled clear of it, so touching solids are treated as touching but not
// overlapping. The shrink is at least a few float32 steps of the largest
// coordinate, so the output survives rounding to the interchange format.
package boolean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/chazu/cork/pkg/classify"
	"github.com/chazu/cork/pkg/combine"
	"github.com/chazu/cork/pkg/intersect"
	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/predicate"
	"github.com/chazu/cork/pkg/subdivide"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Kernel implements kernel.Kernel. A Kernel holds only configuration and
// is safe for concurrent use.
type Kernel struct {
	logger         *slog.Logger
	workers        int
	maxAttempts    int
	skipSolidCheck bool
}

// New returns a Kernel configured by opts.
func New(opts ...Option) *Kernel {
	k := &Kernel{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kernel) log() *slog.Logger {
	if k.logger != nil {
		return k.logger
	}
	return Logger()
}

// IsSolid reports whether m is closed, 2-manifold and consistently
// oriented.
func (k *Kernel) IsSolid(m *kernel.Mesh) bool {
	im, err := mesh.FromKernel(m, mesh.SourceA)
	if err != nil {
		return false
	}
	return mesh.IsSolid(im)
}

// Union returns a ∪ b.
func (k *Kernel) Union(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.Union, a, b)
}

// Difference returns a − b.
func (k *Kernel) Difference(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.Difference, a, b)
}

// Intersection returns a ∩ b. Disjoint operands give an empty mesh, not
// an error.
func (k *Kernel) Intersection(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.Intersection, a, b)
}

// SymmetricDifference returns (a − b) ∪ (b − a). Where the operands
// overlap the result touches itself along the intersection curve.
func (k *Kernel) SymmetricDifference(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.SymmetricDifference, a, b)
}

// CutDifference returns the part of a's surface outside b, as an open
// surface.
func (k *Kernel) CutDifference(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.CutDifference, a, b)
}

// CutIntersection returns the part of a's surface inside b, as an open
// surface.
func (k *Kernel) CutIntersection(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.CutIntersection, a, b)
}

// ResolveIntersections returns both surfaces retriangulated so that the
// intersection curve is made of edges they share. No triangle is removed.
func (k *Kernel) ResolveIntersections(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return k.run(combine.Resolve, a, b)
}

// run is one invocation. All scratch state lives in the invocation.
func (k *Kernel) run(op combine.Op, a, b *kernel.Mesh) (*kernel.Mesh, error) {
	log := k.log().With("op", op.String())

	ma, err := load(a, mesh.SourceA)
	if err != nil {
		return nil, err
	}
	mb, err := load(b, mesh.SourceB)
	if err != nil {
		return nil, err
	}
	if op != combine.Resolve {
		if len(ma.Triangles) == 0 {
			return nil, &kernel.EmptyOperandError{Operand: kernel.OperandA, Op: op.String()}
		}
		if len(mb.Triangles) == 0 {
			return nil, &kernel.EmptyOperandError{Operand: kernel.OperandB, Op: op.String()}
		}
	}
	if !k.skipSolidCheck {
		if err := checkSolid(ma, kernel.OperandA); err != nil {
			return nil, err
		}
		if err := checkSolid(mb, kernel.OperandB); err != nil {
			return nil, err
		}
	}

	orig := mesh.Merge(ma, mb)
	shrinks := perturbations(orig.Bounds(), mb.Bounds(), k.maxAttempts)
	exactBefore := predicate.ExactCalls()

	var lastErr error
	for attempt, p := range shrinks {
		work := orig
		if attempt > 0 {
			work = orig.Clone()
			for i := len(ma.Positions); i < len(work.Positions); i++ {
				work.Positions[i] = p.apply(work.Positions[i])
			}
		}
		out, err := k.attempt(op, work, log)
		if err == nil {
			if attempt > 0 {
				log.Warn("boolean: resolved degenerate input by perturbation", "attempts", attempt+1)
			}
			log.Debug("boolean: done",
				"triangles", out.TriangleCount(),
				"exact_predicates", predicate.ExactCalls()-exactBefore)
			return out, nil
		}
		if !errors.Is(err, kernel.ErrDegenerate) {
			return nil, err
		}
		log.Debug("boolean: degenerate pass", "attempt", attempt, "err", err)
		lastErr = err
	}
	return nil, &kernel.IntersectionTopologyError{
		Message: fmt.Sprintf("configuration stays degenerate after %d attempts: %v", len(shrinks), lastErr),
	}
}

// attempt runs the pipeline once on work, a merged mesh whose B vertices
// may be perturbed.
func (k *Kernel) attempt(op combine.Op, work *mesh.Mesh, log *slog.Logger) (*kernel.Mesh, error) {
	ctx := context.Background()

	curve, err := intersect.Build(ctx, work, intersect.Options{Workers: k.workers, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	sub, err := subdivide.Subdivide(work, curve)
	if err != nil {
		return nil, fmt.Errorf("subdivide: %w", err)
	}
	log.Debug("boolean: subdivided", "split", sub.Split, "triangles", len(sub.Mesh.Triangles))

	cls, err := classify.Classify(ctx, sub.Mesh, sub.CurveEdges, classify.Options{Workers: k.workers, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	tris, err := combine.Select(op, sub.Mesh, cls)
	if err != nil {
		return nil, err
	}
	if err := combine.CheckRounding(sub.Mesh.Positions, len(work.Positions), tris); err != nil {
		return nil, err
	}
	return combine.Stitch(op, sub.Mesh.Positions, tris)
}

func load(km *kernel.Mesh, src mesh.Source) (*mesh.Mesh, error) {
	m, err := mesh.FromKernel(km, src)
	if err != nil {
		return nil, &kernel.InvalidInputError{Operand: operand(src), Reason: err.Error()}
	}
	return m, nil
}

// checkSolid accepts an empty mesh; only Resolve lets one get this far.
func checkSolid(m *mesh.Mesh, op kernel.Operand) error {
	if len(m.Triangles) == 0 {
		return nil
	}
	if err := mesh.CheckSolid(m); err != nil {
		return &kernel.InvalidInputError{Operand: op, Reason: err.Error()}
	}
	return nil
}

func operand(src mesh.Source) kernel.Operand {
	if src == mesh.SourceB {
		return kernel.OperandB
	}
	return kernel.OperandA
}

// firstWeights scales the per-axis shrink of the first perturbed pass.
// The components differ and have no rational relation to each other.
var firstWeights = v3.Vec{X: 1, Y: 0.7548776662, Z: 0.5698402910}

// perturbSeed seeds the weights of the passes after the first.
const perturbSeed = 0x636f726b

// shrink moves points toward center; along each axis a point moves by
// the given fraction of its distance to center.
type shrink struct {
	center v3.Vec
	frac   v3.Vec
}

func (s shrink) apply(p v3.Vec) v3.Vec {
	return v3.Vec{
		X: p.X - (p.X-s.center.X)*s.frac.X,
		Y: p.Y - (p.Y-s.center.Y)*s.frac.Y,
		Z: p.Z - (p.Z-s.center.Z)*s.frac.Z,
	}
}

// perturbations returns the shrink applied to B on each attempt. The first
// is the identity. On attempt k the faces of B's bounding box move inward
// by k·δ·w, with w in [0.5, 1] per axis and δ the larger of 2⁻²⁴ of the
// bounding box diagonal and 2⁻²¹ of the largest coordinate magnitude.
// The second bound keeps every move several float32 steps long. Weights
// after the first pass come from a fixed-seed generator, so the sequence
// is the same on every run.
func perturbations(all, b mesh.Box, attempts int) []shrink {
	out := make([]shrink, attempts)
	if b.Min.X > b.Max.X {
		return out
	}
	delta := math.Max(all.Diagonal()*math.Ldexp(1, -24), magnitude(all)*math.Ldexp(1, -21))
	if delta == 0 {
		delta = math.Ldexp(1, -24)
	}
	center := b.Min.Add(b.Max).MulScalar(0.5)
	half := b.Max.Sub(b.Min).MulScalar(0.5)
	rng := rand.New(rand.NewSource(perturbSeed))
	for i := 1; i < attempts; i++ {
		w := firstWeights
		if i > 1 {
			w = v3.Vec{X: 0.5 + 0.5*rng.Float64(), Y: 0.5 + 0.5*rng.Float64(), Z: 0.5 + 0.5*rng.Float64()}
		}
		step := delta * float64(i)
		out[i] = shrink{
			center: center,
			frac: v3.Vec{
				X: fraction(step*w.X, half.X),
				Y: fraction(step*w.Y, half.Y),
				Z: fraction(step*w.Z, half.Z),
			},
		}
	}
	return out
}

// fraction is the share of half that a move of d represents, capped so
// that B never collapses.
func fraction(d, half float64) float64 {
	if half <= 0 {
		return 0
	}
	return math.Min(d/half, 0.25)
}

// magnitude is the largest absolute coordinate in b.
func magnitude(b mesh.Box) float64 {
	m := 0.0
	for _, c := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		m = math.Max(m, math.Abs(c))
	}
	return m
}

var defaultKernel = New()

// Union runs Kernel.Union with default options.
func Union(a, b *kernel.Mesh) (*kernel.Mesh, error) { return defaultKernel.Union(a, b) }

// Difference runs Kernel.Difference with default options.
func Difference(a, b *kernel.Mesh) (*kernel.Mesh, error) { return defaultKernel.Difference(a, b) }

// Intersection runs Kernel.Intersection with default options.
func Intersection(a, b *kernel.Mesh) (*kernel.Mesh, error) { return defaultKernel.Intersection(a, b) }

// SymmetricDifference runs Kernel.SymmetricDifference with default options.
func SymmetricDifference(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return defaultKernel.SymmetricDifference(a, b)
}

// CutDifference runs Kernel.CutDifference with default options.
func CutDifference(a, b *kernel.Mesh) (*kernel.Mesh, error) { return defaultKernel.CutDifference(a, b) }

// CutIntersection runs Kernel.CutIntersection with default options.
func CutIntersection(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return defaultKernel.CutIntersection(a, b)
}

// ResolveIntersections runs Kernel.ResolveIntersections with default
// options.
func ResolveIntersections(a, b *kernel.Mesh) (*kernel.Mesh, error) {
	return defaultKernel.ResolveIntersections(a, b)
}

// IsSolid reports whether m is a valid operand.
func IsSolid(m *kernel.Mesh) bool { return defaultKernel.IsSolid(m) }
