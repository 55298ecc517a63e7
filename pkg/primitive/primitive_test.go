package primitive

import (
	"math"
	"testing"

	"github.com/chazu/cork/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestBox(t *testing.T) {
	km, err := Box(100, 50, 25)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	if km.TriangleCount() != 12 {
		t.Fatalf("TriangleCount() = %d, want 12", km.TriangleCount())
	}
	if km.VertexCount() != 8 {
		t.Fatalf("VertexCount() = %d, want 8", km.VertexCount())
	}
	m, err := mesh.FromKernel(km, mesh.SourceA)
	if err != nil {
		t.Fatalf("FromKernel failed: %v", err)
	}
	if err := mesh.CheckSolid(m); err != nil {
		t.Fatalf("box is not solid: %v", err)
	}
	if got := m.Volume(); math.Abs(got-125000) > 1e-6 {
		t.Errorf("Volume() = %v, want 125000", got)
	}
	b := m.Bounds()
	if b.Min != (v3.Vec{}) || b.Max != (v3.Vec{X: 100, Y: 50, Z: 25}) {
		t.Errorf("Bounds() = %v, want min corner at origin", b)
	}
}

func TestBoxAtInvalid(t *testing.T) {
	for _, tc := range []struct {
		name     string
		min, max v3.Vec
	}{
		{"flat", v3.Vec{}, v3.Vec{X: 1, Y: 1}},
		{"inverted", v3.Vec{X: 1, Y: 1, Z: 1}, v3.Vec{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BoxAt(tc.min, tc.max); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCylinder(t *testing.T) {
	km, err := Cylinder(2, 1, 32)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	if km.TriangleCount() != 4*32 {
		t.Fatalf("TriangleCount() = %d, want %d", km.TriangleCount(), 4*32)
	}
	m, err := mesh.FromKernel(km, mesh.SourceA)
	if err != nil {
		t.Fatalf("FromKernel failed: %v", err)
	}
	if err := mesh.CheckSolid(m); err != nil {
		t.Fatalf("cylinder is not solid: %v", err)
	}
	// A regular 32-gon prism of circumradius 1 and height 2.
	want := 2 * 0.5 * 32 * math.Sin(2*math.Pi/32)
	if got := m.Volume(); math.Abs(got-want) > 1e-5 {
		t.Errorf("Volume() = %v, want %v", got, want)
	}
}

func TestCylinderInvalid(t *testing.T) {
	if _, err := Cylinder(1, 1, 2); err == nil {
		t.Error("expected error for 2 segments")
	}
	if _, err := Cylinder(0, 1, 8); err == nil {
		t.Error("expected error for zero height")
	}
}
