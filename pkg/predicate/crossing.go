package predicate

import v3 "github.com/deadsy/sdfx/vec/v3"

// Crossing classifies how a segment meets a triangle.
type Crossing int

const (
	// NoCrossing: the closed segment and the closed triangle are disjoint.
	NoCrossing Crossing = iota
	// Crosses: the open segment passes through the open triangle
	// transversally, at a single point.
	Crosses
	// Degenerate: the segment touches the triangle's plane at an
	// endpoint, lies in it, or passes through a triangle edge or vertex.
	Degenerate
)

func (c Crossing) String() string {
	switch c {
	case Crosses:
		return "crosses"
	case Degenerate:
		return "degenerate"
	default:
		return "none"
	}
}

// SegmentTriangle classifies segment pq against triangle abc.
//
// The answer is derived only from Orient3D signs, so it is exact for the
// given coordinates and independent of the order in which callers visit
// segments and triangles.
func SegmentTriangle(p, q, a, b, c v3.Vec) Crossing {
	sp := Orient3D(a, b, c, p)
	sq := Orient3D(a, b, c, q)
	if sp != Zero && sp == sq {
		return NoCrossing
	}

	s1 := Orient3D(p, q, a, b)
	s2 := Orient3D(p, q, b, c)
	s3 := Orient3D(p, q, c, a)

	if sp != Zero && sq != Zero {
		// Endpoints strictly on opposite sides of the plane.
		if s1 == s2 && s2 == s3 && s1 != Zero {
			return Crosses
		}
		if separated(s1, s2, s3) {
			return NoCrossing
		}
		return Degenerate
	}

	// At least one endpoint is on the plane. It only matters if the line
	// through pq meets the closed triangle.
	if sp == Zero && sq == Zero {
		return Degenerate
	}
	if separated(s1, s2, s3) {
		return NoCrossing
	}
	return Degenerate
}

// separated reports whether the line through the segment misses the
// closed triangle: the edge orientations take both strict signs.
func separated(s1, s2, s3 Sign) bool {
	pos := s1 == Positive || s2 == Positive || s3 == Positive
	neg := s1 == Negative || s2 == Negative || s3 == Negative
	return pos && neg
}
