package mesh

import (
	"cmp"
	"slices"
)

// Edge is an undirected edge with V[0] < V[1].
type Edge [2]int

// MakeEdge returns the canonical undirected edge between a and b.
func MakeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// CompareEdges orders edges lexicographically.
func CompareEdges(e, f Edge) int {
	if c := cmp.Compare(e[0], f[0]); c != 0 {
		return c
	}
	return cmp.Compare(e[1], f[1])
}

// Edges returns the three undirected edges of t; edge i joins corners i
// and i+1.
func (t Triangle) Edges() [3]Edge {
	return [3]Edge{
		MakeEdge(t.V[0], t.V[1]),
		MakeEdge(t.V[1], t.V[2]),
		MakeEdge(t.V[2], t.V[0]),
	}
}

// HasDirected reports whether t traverses a then b in its winding.
func (t Triangle) HasDirected(a, b int) bool {
	for i := 0; i < 3; i++ {
		if t.V[i] == a && t.V[(i+1)%3] == b {
			return true
		}
	}
	return false
}

// EdgeMap maps each undirected edge to the triangles that use it, in
// increasing triangle order.
type EdgeMap map[Edge][]int

// BuildEdgeMap indexes the edges of every triangle.
func (m *Mesh) BuildEdgeMap() EdgeMap {
	em := make(EdgeMap, len(m.Triangles)*3/2)
	for ti, t := range m.Triangles {
		for _, e := range t.Edges() {
			em[e] = append(em[e], ti)
		}
	}
	return em
}

// SortedEdges returns the map's edges in lexicographic order so callers
// iterate deterministically.
func (em EdgeMap) SortedEdges() []Edge {
	edges := make([]Edge, 0, len(em))
	for e := range em {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, CompareEdges)
	return edges
}

// VertexTriangles returns, for each vertex, the triangles incident to it.
func (m *Mesh) VertexTriangles() [][]int {
	vt := make([][]int, len(m.Positions))
	for ti, t := range m.Triangles {
		for _, v := range t.V {
			vt[v] = append(vt[v], ti)
		}
	}
	return vt
}
