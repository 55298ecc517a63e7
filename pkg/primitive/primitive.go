// Package primitive builds closed, counter-clockwise wound triangle meshes
// for simple solids. The meshes are exact: every vertex lies on the ideal
// surface, unlike a marching-cubes tessellation of an SDF.
package primitive

import (
	"fmt"
	"math"

	"github.com/chazu/cork/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// builder accumulates vertices and triangles before flattening them into
// the kernel's soup layout.
type builder struct {
	verts []v3.Vec
	tris  [][3]uint32
}

func (b *builder) vertex(p v3.Vec) uint32 {
	b.verts = append(b.verts, p)
	return uint32(len(b.verts) - 1)
}

func (b *builder) tri(i, j, k uint32) {
	b.tris = append(b.tris, [3]uint32{i, j, k})
}

func (b *builder) mesh() *kernel.Mesh {
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, len(b.verts)*3),
		Indices:  make([]uint32, 0, len(b.tris)*3),
	}
	for _, p := range b.verts {
		m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	}
	for _, t := range b.tris {
		m.Indices = append(m.Indices, t[0], t[1], t[2])
	}
	return m
}

// Box creates a box with the given dimensions. The box has its minimum
// corner at the origin so that a later translation places that corner.
func Box(x, y, z float64) (*kernel.Mesh, error) {
	return BoxAt(v3.Vec{}, v3.Vec{X: x, Y: y, Z: z})
}

// BoxAt creates the box spanning min to max: 8 vertices, 12 triangles.
func BoxAt(min, max v3.Vec) (*kernel.Mesh, error) {
	if !(max.X > min.X && max.Y > min.Y && max.Z > min.Z) {
		return nil, fmt.Errorf("box: max %v must exceed min %v on every axis", max, min)
	}
	var b builder
	// Corner i has bit 0 set for max x, bit 1 for max y, bit 2 for max z.
	for i := 0; i < 8; i++ {
		p := min
		if i&1 != 0 {
			p.X = max.X
		}
		if i&2 != 0 {
			p.Y = max.Y
		}
		if i&4 != 0 {
			p.Z = max.Z
		}
		b.vertex(p)
	}
	for _, f := range boxFaces {
		b.tri(f[0], f[1], f[2])
	}
	return b.mesh(), nil
}

var boxFaces = [12][3]uint32{
	{0, 2, 1}, {1, 2, 3}, // -z
	{4, 5, 6}, {5, 7, 6}, // +z
	{0, 1, 4}, {1, 5, 4}, // -y
	{2, 6, 3}, {3, 6, 7}, // +y
	{0, 4, 2}, {2, 4, 6}, // -x
	{1, 3, 5}, {3, 7, 5}, // +x
}

// Cylinder creates a cylinder along the z axis, centred on the origin,
// approximated by a prism with the given number of sides.
func Cylinder(height, radius float64, segments int) (*kernel.Mesh, error) {
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("cylinder: height %g and radius %g must be positive", height, radius)
	}
	if segments < 3 {
		return nil, fmt.Errorf("cylinder: need at least 3 segments, got %d", segments)
	}
	var b builder
	h := height / 2
	bottom := b.vertex(v3.Vec{Z: -h})
	top := b.vertex(v3.Vec{Z: h})
	ring := make([][2]uint32, segments)
	for i := range ring {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		x, y := radius*math.Cos(theta), radius*math.Sin(theta)
		ring[i] = [2]uint32{
			b.vertex(v3.Vec{X: x, Y: y, Z: -h}),
			b.vertex(v3.Vec{X: x, Y: y, Z: h}),
		}
	}
	for i := range ring {
		j := (i + 1) % segments
		b.tri(bottom, ring[j][0], ring[i][0])
		b.tri(top, ring[i][1], ring[j][1])
		b.tri(ring[i][0], ring[j][0], ring[j][1])
		b.tri(ring[i][0], ring[j][1], ring[i][1])
	}
	return b.mesh(), nil
}
