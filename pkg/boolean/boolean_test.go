package boolean

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/primitive"
	"github.com/chazu/cork/pkg/transform"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const tol = 1e-5

func cubeAt(t *testing.T, x, y, z float64) *kernel.Mesh {
	t.Helper()
	km, err := primitive.Box(1, 1, 1)
	require.NoError(t, err)
	return transform.Translate(km, x, y, z)
}

func indexed(t *testing.T, km *kernel.Mesh) *mesh.Mesh {
	t.Helper()
	m, err := mesh.FromKernel(km, mesh.SourceA)
	require.NoError(t, err)
	return m
}

func volume(t *testing.T, km *kernel.Mesh) float64 {
	t.Helper()
	return indexed(t, km).Volume()
}

func area(t *testing.T, km *kernel.Mesh) float64 {
	t.Helper()
	return indexed(t, km).Area()
}

func requireSolid(t *testing.T, km *kernel.Mesh) {
	t.Helper()
	require.NoError(t, mesh.CheckSolid(indexed(t, km)))
}

func TestOverlappingCubes(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0.3, 0.2)
	overlap := 0.5 * (1 - float64(float32(0.3))) * (1 - float64(float32(0.2)))

	u, err := Union(a, b)
	require.NoError(t, err)
	requireSolid(t, u)
	assert.InDelta(t, 2-overlap, volume(t, u), tol)

	d, err := Difference(a, b)
	require.NoError(t, err)
	requireSolid(t, d)
	assert.InDelta(t, 1-overlap, volume(t, d), tol)

	i, err := Intersection(a, b)
	require.NoError(t, err)
	requireSolid(t, i)
	assert.InDelta(t, overlap, volume(t, i), tol)

	x, err := SymmetricDifference(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 2-2*overlap, volume(t, x), tol)
}

// Cubes offset along one axis share four face planes, so every pass but
// the first runs on perturbed input.
func TestCoplanarCubes(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0, 0)

	tests := []struct {
		name string
		op   func(a, b *kernel.Mesh) (*kernel.Mesh, error)
		want float64
	}{
		{"union", Union, 1.5},
		{"difference", Difference, 0.5},
		{"intersection", Intersection, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.op(a, b)
			require.NoError(t, err)
			requireSolid(t, out)
			assert.InDelta(t, tt.want, volume(t, out), tol)
		})
	}
}

// A cube sharing a face with another touches it without crossing,
// whichever face it is.
func TestTouchingCubes(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)

	tests := []struct {
		name    string
		x, y, z float64
	}{
		{"+x", 1, 0, 0},
		{"-x", -1, 0, 0},
		{"+y", 0, 1, 0},
		{"-y", 0, -1, 0},
		{"+z", 0, 0, 1},
		{"-z", 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := cubeAt(t, tt.x, tt.y, tt.z)

			u, err := Union(a, b)
			require.NoError(t, err)
			assert.Equal(t, 24, u.TriangleCount())
			assert.InDelta(t, 2.0, volume(t, u), tol)

			i, err := Intersection(a, b)
			require.NoError(t, err)
			require.NotNil(t, i)
			assert.True(t, i.IsEmpty(), "intersection has %d triangles", i.TriangleCount())

			d, err := Difference(a, b)
			require.NoError(t, err)
			assert.Equal(t, 12, d.TriangleCount())
			assert.InDelta(t, 1.0, volume(t, d), tol)
		})
	}
}

// requireNoCollapse fails if two output vertices share a position or a
// triangle has no area, both measured on the float32 output.
func requireNoCollapse(t *testing.T, km *kernel.Mesh) {
	t.Helper()
	seen := make(map[[3]float32]uint32)
	for i := 0; i < km.VertexCount(); i++ {
		p := [3]float32{km.Vertices[3*i], km.Vertices[3*i+1], km.Vertices[3*i+2]}
		if j, ok := seen[p]; ok {
			require.Failf(t, "duplicate position", "vertices %d and %d at %v", j, i, p)
		}
		seen[p] = uint32(i)
	}
	m := indexed(t, km)
	for ti := range m.Triangles {
		a, b, c := m.Corners(ti)
		require.Greater(t, b.Sub(a).Cross(c.Sub(a)).Length(), 0.0, "triangle %d has no area", ti)
	}
}

// Far from the origin one float32 step is larger than a perturbation
// scaled by the bounding box alone would be.
func TestFarFromOrigin(t *testing.T) {
	a := cubeAt(t, 1000, 1000, 1000)
	b := cubeAt(t, 1000.5, 1000, 1000)

	tests := []struct {
		name string
		op   func(a, b *kernel.Mesh) (*kernel.Mesh, error)
		want float64
	}{
		{"union", Union, 1.5},
		{"difference", Difference, 0.5},
		{"intersection", Intersection, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.op(a, b)
			require.NoError(t, err)
			requireSolid(t, out)
			requireNoCollapse(t, out)
			assert.InDelta(t, tt.want, volume(t, out), 1e-2)
		})
	}
}

func TestDisjointCubes(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 3, 0, 0)

	d, err := Difference(a, b)
	require.NoError(t, err)
	assert.Equal(t, 8, d.VertexCount())
	assert.Equal(t, 12, d.TriangleCount())
	assert.InDelta(t, 1.0, volume(t, d), tol)

	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, 24, u.TriangleCount())
	assert.InDelta(t, 2.0, volume(t, u), tol)

	i, err := Intersection(a, b)
	require.NoError(t, err)
	assert.True(t, i.IsEmpty())
}

func TestNestedCubes(t *testing.T) {
	outer, err := primitive.BoxAt(v3.Vec{X: -1, Y: -1, Z: -1}, v3.Vec{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)
	inner := cubeAt(t, 0, 0, 0)

	d, err := Difference(outer, inner)
	require.NoError(t, err)
	assert.Equal(t, 24, d.TriangleCount())
	assert.InDelta(t, 26.0, volume(t, d), tol)

	i, err := Intersection(outer, inner)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, volume(t, i), tol)
}

func TestUnionWithItself(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	u, err := Union(a, a)
	require.NoError(t, err)
	requireSolid(t, u)
	assert.InDelta(t, 1.0, volume(t, u), tol)
}

func TestCutOperations(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0.3, 0.2)

	cd, err := CutDifference(a, b)
	require.NoError(t, err)
	ci, err := CutIntersection(a, b)
	require.NoError(t, err)

	assert.False(t, IsSolid(cd))
	assert.False(t, IsSolid(ci))
	assert.InDelta(t, 6.0, area(t, cd)+area(t, ci), tol)

	// Only A's surface survives a cut.
	bb := indexed(t, ci).Bounds()
	assert.LessOrEqual(t, bb.Max.X, 1.0+tol)
}

func TestResolveIntersections(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0.3, 0.2)

	r, err := ResolveIntersections(a, b)
	require.NoError(t, err)
	assert.Greater(t, r.TriangleCount(), a.TriangleCount()+b.TriangleCount())
	assert.InDelta(t, 12.0, area(t, r), tol)
	assert.InDelta(t, 2.0, volume(t, r), tol)

	// An empty operand is allowed and leaves the other untouched.
	r, err = ResolveIntersections(&kernel.Mesh{}, b)
	require.NoError(t, err)
	assert.Equal(t, b.TriangleCount(), r.TriangleCount())
}

func TestInputsNotMutated(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0, 0)
	a0, b0 := a.Clone(), b.Clone()

	_, err := Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, a0, a)
	assert.Equal(t, b0, b)
}

func TestInvalidInput(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	open := cubeAt(t, 0.5, 0.5, 0.5)
	open.Indices = open.Indices[3:]

	_, err := Union(a, open)
	var invalid *kernel.InvalidInputError
	require.True(t, errors.As(err, &invalid), "error = %v", err)
	assert.Equal(t, kernel.OperandB, invalid.Operand)

	_, err = Union(nil, a)
	require.True(t, errors.As(err, &invalid), "error = %v", err)
	assert.Equal(t, kernel.OperandA, invalid.Operand)

	assert.False(t, IsSolid(open))
	assert.False(t, IsSolid(nil))
	assert.True(t, IsSolid(a))
}

func TestEmptyOperand(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)

	_, err := Difference(a, &kernel.Mesh{})
	var empty *kernel.EmptyOperandError
	require.True(t, errors.As(err, &empty), "error = %v", err)
	assert.Equal(t, kernel.OperandB, empty.Operand)
	assert.Equal(t, "difference", empty.Op)

	_, err = Union(&kernel.Mesh{}, a)
	require.True(t, errors.As(err, &empty), "error = %v", err)
	assert.Equal(t, kernel.OperandA, empty.Operand)
}

func TestSkipSolidCheck(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	open := cubeAt(t, 3, 0, 0)
	open.Indices = open.Indices[3:]

	// Disjoint and open: nothing crosses, so the union simply keeps both
	// surfaces and fails only at stitching.
	_, err := New(WithSkipSolidCheck()).Union(a, open)
	var nm *kernel.NonManifoldResultError
	require.True(t, errors.As(err, &nm), "error = %v", err)
}

func TestMaxAttempts(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 1, 0, 0)

	_, err := New(WithMaxAttempts(1)).Union(a, b)
	var topo *kernel.IntersectionTopologyError
	require.True(t, errors.As(err, &topo), "error = %v", err)
	assert.Contains(t, topo.Message, "1 attempts")

	_, err = New(WithMaxAttempts(0)).Union(a, b)
	require.True(t, errors.As(err, &topo), "error = %v", err)
}

func TestDeterministic(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0, 0)

	one, err := New(WithWorkers(1)).Union(a, b)
	require.NoError(t, err)
	many, err := New(WithWorkers(8)).Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, one, many)
}

func TestConcurrentOperations(t *testing.T) {
	a := cubeAt(t, 0, 0, 0)
	b := cubeAt(t, 0.5, 0, 0)
	want, err := Union(a, b)
	require.NoError(t, err)

	const n = 16
	got := make([]*kernel.Mesh, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			out, err := Union(a, b)
			got[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, out := range got {
		assert.Equal(t, want, out, "call %d", i)
	}
}

func TestCylinderThroughBox(t *testing.T) {
	box, err := primitive.BoxAt(v3.Vec{X: -1, Y: -1, Z: -0.5}, v3.Vec{X: 1, Y: 1, Z: 0.5})
	require.NoError(t, err)
	cyl, err := primitive.Cylinder(3, 0.5, 16)
	require.NoError(t, err)
	cylVolume := volume(t, cyl) / 3

	d, err := Difference(box, cyl)
	require.NoError(t, err)
	requireSolid(t, d)
	assert.InDelta(t, 4-cylVolume, volume(t, d), tol)
}

func TestPerturbations(t *testing.T) {
	b := mesh.EmptyBox().Include(v3.Vec{}).Include(v3.Vec{X: 1, Y: 2, Z: 4})
	shrinks := perturbations(b, b, 4)
	require.Len(t, shrinks, 4)
	assert.Equal(t, shrink{}, shrinks[0])
	assert.Equal(t, v3.Vec{X: 1, Y: 2, Z: 4}, shrinks[0].apply(v3.Vec{X: 1, Y: 2, Z: 4}))

	delta := 4 * math.Ldexp(1, -21)
	for i := 1; i < len(shrinks); i++ {
		step := delta * float64(i)
		// The max corner moves inward on every axis, by between half and
		// all of the step.
		moved := v3.Vec{X: 1, Y: 2, Z: 4}.Sub(shrinks[i].apply(v3.Vec{X: 1, Y: 2, Z: 4}))
		for _, c := range []float64{moved.X, moved.Y, moved.Z} {
			assert.GreaterOrEqual(t, c, 0.5*step*(1-1e-9))
			assert.LessOrEqual(t, c, step*(1+1e-9))
		}
		// The min corner moves the opposite way.
		back := shrinks[i].apply(v3.Vec{})
		assert.Greater(t, back.X, 0.0)
		assert.Greater(t, back.Y, 0.0)
		assert.Greater(t, back.Z, 0.0)
	}
	assert.Equal(t, shrinks, perturbations(b, b, 4))

	// Far from the origin the step follows the coordinate magnitude.
	far := mesh.EmptyBox().Include(v3.Vec{X: 1000, Y: 1000, Z: 1000}).Include(v3.Vec{X: 1001, Y: 1001, Z: 1001})
	p := perturbations(far, far, 2)[1]
	moved := 1001 - p.apply(v3.Vec{X: 1001, Y: 1001, Z: 1001}).Z
	assert.Greater(t, moved, 4*float64(math.Nextafter32(1001, 2000)-1001))

	// An empty B is left alone.
	assert.Equal(t, make([]shrink, 3), perturbations(b, mesh.EmptyBox(), 3))
}

func TestLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	_, err := Union(cubeAt(t, 0, 0, 0), cubeAt(t, 1, 0, 0))
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "perturbation"), buf.String())

	SetLogger(nil)
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))

	var own bytes.Buffer
	k := New(WithLogger(slog.New(slog.NewTextHandler(&own, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	_, err = k.Union(cubeAt(t, 0, 0, 0), cubeAt(t, 3, 0, 0))
	require.NoError(t, err)
	assert.Contains(t, own.String(), "op=union")
}
