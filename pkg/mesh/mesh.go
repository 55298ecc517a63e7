// Package mesh is the mutable in-memory triangle mesh the Boolean kernel
// works on: an arena of vertex positions and triangles addressed by
// integer index, with adjacency recomputed into side tables on demand
// instead of stored as pointers.
package mesh

import (
	"fmt"
	"math"

	"github.com/chazu/cork/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Source tags a triangle with the operand it came from.
type Source uint8

const (
	SourceA Source = iota
	SourceB
)

func (s Source) String() string {
	if s == SourceB {
		return "B"
	}
	return "A"
}

// Other returns the opposite operand.
func (s Source) Other() Source {
	return 1 - s
}

// Triangle is three vertex indices, wound counter-clockwise seen from
// outside, plus its provenance.
type Triangle struct {
	V      [3]int
	Source Source
}

// Flipped returns the triangle with reversed winding.
func (t Triangle) Flipped() Triangle {
	return Triangle{V: [3]int{t.V[0], t.V[2], t.V[1]}, Source: t.Source}
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Positions []v3.Vec
	Triangles []Triangle
}

// New returns an empty mesh with room for the given counts.
func New(vertices, triangles int) *Mesh {
	return &Mesh{
		Positions: make([]v3.Vec, 0, vertices),
		Triangles: make([]Triangle, 0, triangles),
	}
}

// FromKernel converts an interchange soup into an indexed mesh tagged
// with src. The soup is validated and copied; it is never retained.
func FromKernel(km *kernel.Mesh, src Source) (*Mesh, error) {
	if err := km.Validate(); err != nil {
		return nil, err
	}
	m := New(km.VertexCount(), km.TriangleCount())
	for i := 0; i < km.VertexCount(); i++ {
		p := km.Position(uint32(i))
		for _, c := range p {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Errorf("vertex %d has non-finite coordinate", i)
			}
		}
		m.Positions = append(m.Positions, v3.Vec{X: p[0], Y: p[1], Z: p[2]})
	}
	for t := 0; t < km.TriangleCount(); t++ {
		tri := km.Triangle(t)
		m.Triangles = append(m.Triangles, Triangle{
			V:      [3]int{int(tri[0]), int(tri[1]), int(tri[2])},
			Source: src,
		})
	}
	return m, nil
}

// ToKernel converts the mesh back to an interchange soup. Vertices that no
// triangle references are dropped and the rest are renumbered in order of
// first use, so the output depends only on the triangle list.
func (m *Mesh) ToKernel() *kernel.Mesh {
	remap := make([]int, len(m.Positions))
	for i := range remap {
		remap[i] = -1
	}
	out := &kernel.Mesh{
		Vertices: make([]float32, 0, len(m.Positions)*3),
		Indices:  make([]uint32, 0, len(m.Triangles)*3),
	}
	next := 0
	for _, t := range m.Triangles {
		for _, v := range t.V {
			if remap[v] < 0 {
				remap[v] = next
				next++
				p := m.Positions[v]
				out.Vertices = append(out.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
			}
			out.Indices = append(out.Indices, uint32(remap[v]))
		}
	}
	return out
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p v3.Vec) int {
	m.Positions = append(m.Positions, p)
	return len(m.Positions) - 1
}

// AddTriangle appends a triangle and returns its index.
func (m *Mesh) AddTriangle(t Triangle) int {
	m.Triangles = append(m.Triangles, t)
	return len(m.Triangles) - 1
}

// Corners returns the three positions of triangle t.
func (m *Mesh) Corners(t int) (a, b, c v3.Vec) {
	tri := m.Triangles[t]
	return m.Positions[tri.V[0]], m.Positions[tri.V[1]], m.Positions[tri.V[2]]
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Positions: make([]v3.Vec, len(m.Positions)),
		Triangles: make([]Triangle, len(m.Triangles)),
	}
	copy(out.Positions, m.Positions)
	copy(out.Triangles, m.Triangles)
	return out
}

// Merge returns a mesh holding the vertices and triangles of a followed by
// those of b. Indices of b are offset by len(a.Positions).
func Merge(a, b *Mesh) *Mesh {
	out := New(len(a.Positions)+len(b.Positions), len(a.Triangles)+len(b.Triangles))
	out.Positions = append(out.Positions, a.Positions...)
	out.Positions = append(out.Positions, b.Positions...)
	out.Triangles = append(out.Triangles, a.Triangles...)
	off := len(a.Positions)
	for _, t := range b.Triangles {
		out.Triangles = append(out.Triangles, Triangle{
			V:      [3]int{t.V[0] + off, t.V[1] + off, t.V[2] + off},
			Source: t.Source,
		})
	}
	return out
}
