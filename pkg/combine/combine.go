// Package combine selects and orients the classified patches of both
// operands for a Boolean operation and stitches them into the result
// mesh.
package combine

import (
	"fmt"

	"github.com/chazu/cork/pkg/classify"
	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
)

// Op is a Boolean operation.
type Op int

const (
	Union Op = iota
	Difference
	Intersection
	SymmetricDifference
	CutDifference
	CutIntersection
	Resolve
)

var opNames = [...]string{
	Union:               "union",
	Difference:          "difference",
	Intersection:        "intersection",
	SymmetricDifference: "symmetric difference",
	CutDifference:       "cut difference",
	CutIntersection:     "cut intersection",
	Resolve:             "resolve intersections",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// Cut reports whether the result keeps only geometry from A.
func (o Op) Cut() bool {
	return o == CutDifference || o == CutIntersection
}

// Closed reports whether the result must be a closed surface.
func (o Op) Closed() bool {
	return !o.Cut() && o != Resolve
}

// member reports whether a point with the given memberships belongs to
// the result.
func (o Op) member(inA, inB bool) bool {
	switch o {
	case Union:
		return inA || inB
	case Difference, CutDifference:
		return inA && !inB
	case Intersection, CutIntersection:
		return inA && inB
	case SymmetricDifference:
		return inA != inB
	}
	return false
}

// Decision is what happens to one patch.
type Decision struct {
	Keep bool
	Flip bool
}

// Decide applies the operation to a patch of src that lies inside (or
// outside) the other operand. The surface is kept when the result
// differs on its two sides, and reversed when the result is on its front,
// so the output always faces away from the result's interior.
func (o Op) Decide(src mesh.Source, inside bool) Decision {
	if o == Resolve {
		return Decision{Keep: true}
	}
	if o.Cut() && src == mesh.SourceB {
		return Decision{}
	}
	at := func(inSelf bool) bool {
		if src == mesh.SourceA {
			return o.member(inSelf, inside)
		}
		return o.member(inside, inSelf)
	}
	front, back := at(false), at(true)
	if front == back {
		return Decision{}
	}
	return Decision{Keep: true, Flip: front}
}

// Select returns the triangles of m the operation keeps, reoriented as
// needed, in input order.
//
// An operand with no patches fails with an EmptyOperandError; a
// non-empty selection that happens to keep nothing is an explicit empty
// result.
func Select(op Op, m *mesh.Mesh, c *classify.Result) ([]mesh.Triangle, error) {
	if op != Resolve {
		for _, src := range []mesh.Source{mesh.SourceA, mesh.SourceB} {
			if c.Count(src) == 0 {
				return nil, &kernel.EmptyOperandError{Operand: operand(src), Op: op.String()}
			}
		}
	}
	decisions := make([]Decision, len(c.Patches))
	for i, p := range c.Patches {
		decisions[i] = op.Decide(p.Source, p.Inside)
	}
	var out []mesh.Triangle
	for t, tri := range m.Triangles {
		d := decisions[c.PatchOf[t]]
		if !d.Keep {
			continue
		}
		if d.Flip {
			tri = tri.Flipped()
		}
		out = append(out, tri)
	}
	return out, nil
}

func operand(src mesh.Source) kernel.Operand {
	if src == mesh.SourceB {
		return kernel.OperandB
	}
	return kernel.OperandA
}
