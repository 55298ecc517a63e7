// Package transform applies rigid transforms to kernel meshes. Every
// function returns a new mesh; inputs are never modified.
package transform

import (
	"github.com/chazu/cork/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Apply returns m with every vertex mapped through t. A transform with a
// negative determinant mirrors the mesh, so triangle winding is reversed
// to keep the outside facing out.
func Apply(m *kernel.Mesh, t sdf.M44) *kernel.Mesh {
	out := &kernel.Mesh{
		Vertices: make([]float32, len(m.Vertices)),
		Indices:  make([]uint32, len(m.Indices)),
	}
	for i := 0; i < m.VertexCount(); i++ {
		p := m.Position(uint32(i))
		q := t.MulPosition(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
		out.Vertices[i*3] = float32(q.X)
		out.Vertices[i*3+1] = float32(q.Y)
		out.Vertices[i*3+2] = float32(q.Z)
	}
	copy(out.Indices, m.Indices)
	if t.Determinant() < 0 {
		for i := 0; i+2 < len(out.Indices); i += 3 {
			out.Indices[i+1], out.Indices[i+2] = out.Indices[i+2], out.Indices[i+1]
		}
	}
	return out
}

// Translate moves a mesh by (x, y, z).
func Translate(m *kernel.Mesh, x, y, z float64) *kernel.Mesh {
	return Apply(m, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// TranslateZ moves a mesh along the z axis.
func TranslateZ(m *kernel.Mesh, dz float64) *kernel.Mesh {
	return Translate(m, 0, 0, dz)
}

// HalfTurnX is a rotation by half a turn about the x axis. It is built as
// a sign flip so coordinates stay exact.
func HalfTurnX() sdf.M44 {
	return sdf.Scale3d(v3.Vec{X: 1, Y: -1, Z: -1})
}

// HalfTurnY is a rotation by half a turn about the y axis.
func HalfTurnY() sdf.M44 {
	return sdf.Scale3d(v3.Vec{X: -1, Y: 1, Z: -1})
}

// Rotate180X rotates a mesh half a turn about the x axis.
func Rotate180X(m *kernel.Mesh) *kernel.Mesh {
	return Apply(m, HalfTurnX())
}

// Rotate180Y rotates a mesh half a turn about the y axis.
func Rotate180Y(m *kernel.Mesh) *kernel.Mesh {
	return Apply(m, HalfTurnY())
}

// Stack accumulates nested transforms, innermost last. It is used when a
// script places meshes inside nested frames.
type Stack struct {
	frames []sdf.M44
}

// Push enters a frame that applies t inside the current one.
func (s *Stack) Push(t sdf.M44) {
	s.frames = append(s.frames, t)
}

// Pop leaves the innermost frame. Popping an empty stack is a no-op.
func (s *Stack) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Current returns the composition of every frame, outermost first.
func (s *Stack) Current() sdf.M44 {
	m := sdf.Identity3d()
	for _, f := range s.frames {
		m = m.Mul(f)
	}
	return m
}

// Place applies the current frame to m.
func (s *Stack) Place(m *kernel.Mesh) *kernel.Mesh {
	return Apply(m, s.Current())
}
