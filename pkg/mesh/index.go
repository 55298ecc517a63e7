package mesh

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Index is an R-tree over a subset of a mesh's triangles. Boxes are grown
// by a padding so that touching triangles are still reported as
// candidates; the tree only prunes, it never decides.
type Index struct {
	tree *rtreego.Rtree
	pad  float64
}

type indexed struct {
	tri  int
	rect rtreego.Rect
}

func (e *indexed) Bounds() rtreego.Rect { return e.rect }

// rect converts b to a tree rectangle grown by pad on every side.
func rect(b Box, pad float64) rtreego.Rect {
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min.X - pad, b.Min.Y - pad, b.Min.Z - pad},
		rtreego.Point{b.Max.X + pad, b.Max.Y + pad, b.Max.Z + pad},
	)
	if err != nil {
		// Only a dimension mismatch fails, and both points are 3D.
		panic(err)
	}
	return r
}

// NewIndex builds an index over the triangles of m for which keep returns
// true. pad must be positive.
func NewIndex(m *Mesh, pad float64, keep func(t int) bool) *Index {
	var objs []rtreego.Spatial
	for t := range m.Triangles {
		if keep != nil && !keep(t) {
			continue
		}
		objs = append(objs, &indexed{tri: t, rect: rect(m.TriangleBounds(t), pad)})
	}
	return &Index{tree: rtreego.NewTree(3, 25, 50, objs...), pad: pad}
}

// Search returns the indexed triangles whose padded boxes meet b, in
// increasing order.
func (ix *Index) Search(b Box) []int {
	hits := ix.tree.SearchIntersect(rect(b, ix.pad))
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(*indexed).tri
	}
	slices.Sort(out)
	return out
}

// SearchSegment returns the candidates that may meet segment pq.
func (ix *Index) SearchSegment(p, q v3.Vec) []int {
	return ix.Search(EmptyBox().Include(p).Include(q))
}

// Size returns the number of indexed triangles.
func (ix *Index) Size() int {
	return ix.tree.Size()
}
