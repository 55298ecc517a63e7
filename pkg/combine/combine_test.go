package combine

import (
	"errors"
	"testing"

	"github.com/chazu/cork/pkg/classify"
	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/primitive"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestDecide(t *testing.T) {
	keep := Decision{Keep: true}
	flip := Decision{Keep: true, Flip: true}
	drop := Decision{}

	tests := []struct {
		op                   Op
		aOut, aIn, bOut, bIn Decision
	}{
		{Union, keep, drop, keep, drop},
		{Difference, keep, drop, drop, flip},
		{Intersection, drop, keep, drop, keep},
		{SymmetricDifference, keep, flip, keep, flip},
		{CutDifference, keep, drop, drop, drop},
		{CutIntersection, drop, keep, drop, drop},
		{Resolve, keep, keep, keep, keep},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			check := func(src mesh.Source, inside bool, want Decision) {
				if got := tt.op.Decide(src, inside); got != want {
					t.Errorf("Decide(%v, inside=%v) = %+v, want %+v", src, inside, got, want)
				}
			}
			check(mesh.SourceA, false, tt.aOut)
			check(mesh.SourceA, true, tt.aIn)
			check(mesh.SourceB, false, tt.bOut)
			check(mesh.SourceB, true, tt.bIn)
		})
	}
}

func TestOpFlags(t *testing.T) {
	tests := []struct {
		op          Op
		cut, closed bool
	}{
		{Union, false, true},
		{Difference, false, true},
		{Intersection, false, true},
		{SymmetricDifference, false, true},
		{CutDifference, true, false},
		{CutIntersection, true, false},
		{Resolve, false, false},
	}
	for _, tt := range tests {
		if tt.op.Cut() != tt.cut || tt.op.Closed() != tt.closed {
			t.Errorf("%v: Cut()=%v Closed()=%v, want %v %v", tt.op, tt.op.Cut(), tt.op.Closed(), tt.cut, tt.closed)
		}
	}
	if got := Op(42).String(); got != "Op(42)" {
		t.Errorf("String() = %q", got)
	}
}

func cube(t *testing.T) *mesh.Mesh {
	t.Helper()
	km, err := primitive.Box(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	m, err := mesh.FromKernel(km, mesh.SourceA)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// twoPatches classifies cube as one A patch and a shifted copy as one B
// patch, with the given insideness.
func twoPatches(t *testing.T, aIn, bIn bool) (*mesh.Mesh, *classify.Result) {
	a := cube(t)
	b := cube(t)
	for i := range b.Positions {
		b.Positions[i] = b.Positions[i].Add(v3.Vec{X: 3})
	}
	for i := range b.Triangles {
		b.Triangles[i].Source = mesh.SourceB
	}
	m := mesh.Merge(a, b)
	res := &classify.Result{PatchOf: make([]int, len(m.Triangles))}
	res.Patches = []classify.Patch{
		{Source: mesh.SourceA, Inside: aIn},
		{Source: mesh.SourceB, Inside: bIn},
	}
	for i := range m.Triangles {
		if i >= len(a.Triangles) {
			res.PatchOf[i] = 1
			res.Patches[1].Triangles = append(res.Patches[1].Triangles, i)
		} else {
			res.Patches[0].Triangles = append(res.Patches[0].Triangles, i)
		}
	}
	return m, res
}

func TestSelect(t *testing.T) {
	m, res := twoPatches(t, false, false)

	tris, err := Select(Union, m, res)
	if err != nil {
		t.Fatalf("Select(Union) error: %v", err)
	}
	if len(tris) != 24 {
		t.Errorf("Union kept %d triangles, want 24", len(tris))
	}

	tris, err = Select(Intersection, m, res)
	if err != nil {
		t.Fatalf("Select(Intersection) error: %v", err)
	}
	if len(tris) != 0 {
		t.Errorf("Intersection kept %d triangles, want 0", len(tris))
	}

	tris, err = Select(Difference, m, res)
	if err != nil {
		t.Fatalf("Select(Difference) error: %v", err)
	}
	if len(tris) != 12 || tris[0] != m.Triangles[0] {
		t.Errorf("Difference kept %d triangles, want A's 12 unchanged", len(tris))
	}
}

func TestSelectFlips(t *testing.T) {
	m, res := twoPatches(t, false, true)
	tris, err := Select(Difference, m, res)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 24 {
		t.Fatalf("kept %d triangles, want 24", len(tris))
	}
	if tris[12] != m.Triangles[12].Flipped() {
		t.Errorf("B triangle not flipped: %+v", tris[12])
	}
}

func TestSelectEmptyOperand(t *testing.T) {
	m := cube(t)
	res := &classify.Result{
		PatchOf: make([]int, len(m.Triangles)),
		Patches: []classify.Patch{{Source: mesh.SourceA}},
	}
	_, err := Select(Union, m, res)
	var empty *kernel.EmptyOperandError
	if !errors.As(err, &empty) {
		t.Fatalf("Select error = %v, want EmptyOperandError", err)
	}
	if empty.Operand != kernel.OperandB || empty.Op != "union" {
		t.Errorf("got %+v", empty)
	}

	if _, err := Select(Resolve, m, res); err != nil {
		t.Errorf("Select(Resolve) error: %v", err)
	}
}

func TestStitch(t *testing.T) {
	m := cube(t)
	// Add an unreferenced vertex; it must not reach the output.
	m.AddVertex(v3.Vec{X: 7})

	km, err := Stitch(Union, m.Positions, m.Triangles)
	if err != nil {
		t.Fatalf("Stitch error: %v", err)
	}
	if km.VertexCount() != 8 || km.TriangleCount() != 12 {
		t.Errorf("got %d vertices, %d triangles", km.VertexCount(), km.TriangleCount())
	}

	empty, err := Stitch(Intersection, m.Positions, nil)
	if err != nil {
		t.Fatalf("Stitch(empty) error: %v", err)
	}
	if empty == nil || !empty.IsEmpty() {
		t.Errorf("want explicit empty mesh, got %+v", empty)
	}
}

func TestStitchRejects(t *testing.T) {
	m := cube(t)
	open := m.Triangles[2:]
	doubled := append(append([]mesh.Triangle{}, m.Triangles...), m.Triangles[0])
	flipped := append([]mesh.Triangle{m.Triangles[0].Flipped()}, m.Triangles[1:]...)
	twice := append(append([]mesh.Triangle{}, m.Triangles...), m.Triangles...)

	tests := []struct {
		name    string
		op      Op
		tris    []mesh.Triangle
		wantErr bool
	}{
		{"open closed-op", Union, open, true},
		{"open cut-op", CutDifference, open, false},
		{"open resolve", Resolve, open, false},
		{"doubled closed-op", Difference, doubled, true},
		{"doubled cut-op", CutIntersection, doubled, true},
		{"flipped closed-op", Intersection, flipped, true},
		{"flipped cut-op", CutDifference, flipped, true},
		{"open xor", SymmetricDifference, open, true},
		{"two sheets xor", SymmetricDifference, twice, false},
		{"two sheets union", Union, twice, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stitch(tt.op, m.Positions, tt.tris)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var nm *kernel.NonManifoldResultError
			if !errors.As(err, &nm) {
				t.Fatalf("error = %v, want NonManifoldResultError", err)
			}
			if nm.Incident == 0 {
				t.Error("Incident not set")
			}
		})
	}
}

func TestCheckRounding(t *testing.T) {
	corner := func(o float64) []v3.Vec {
		return []v3.Vec{
			{X: o, Y: o, Z: o},
			{X: o + 1, Y: o, Z: o},
			{X: o, Y: o + 1, Z: o},
		}
	}
	tri := func(a, b, c int) mesh.Triangle { return mesh.Triangle{V: [3]int{a, b, c}} }

	tests := []struct {
		name    string
		origin  float64
		curve   v3.Vec
		tris    []mesh.Triangle
		wantErr bool
	}{
		{"curve vertex on a corner far out", 1000, v3.Vec{X: 1e-6}, []mesh.Triangle{tri(0, 1, 2), tri(3, 1, 2)}, true},
		{"curve vertex on a corner near origin", 0, v3.Vec{X: 1e-6}, []mesh.Triangle{tri(0, 1, 2), tri(3, 1, 2)}, false},
		{"sliver flattened far out", 1000, v3.Vec{X: 0.5, Y: 1e-6}, []mesh.Triangle{tri(0, 1, 3)}, true},
		{"sliver kept near origin", 0, v3.Vec{X: 0.5, Y: 1e-6}, []mesh.Triangle{tri(0, 1, 3)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := corner(tt.origin)
			pos = append(pos, pos[0].Add(tt.curve))
			err := CheckRounding(pos, 3, tt.tris)
			if got := errors.Is(err, kernel.ErrDegenerate); got != tt.wantErr {
				t.Errorf("CheckRounding() = %v, want degenerate %v", err, tt.wantErr)
			}
		})
	}

	// Coincident input vertices are not a rounding collapse.
	pos := append(corner(0), v3.Vec{})
	if err := CheckRounding(pos, len(pos), []mesh.Triangle{tri(0, 1, 2), tri(3, 1, 2)}); err != nil {
		t.Errorf("CheckRounding(inputs only) = %v", err)
	}
}
