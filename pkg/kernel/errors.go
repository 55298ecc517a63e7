package kernel

import (
	"errors"
	"fmt"
)

// Operand identifies one of the two inputs of a Boolean operation.
type Operand int

const (
	OperandA Operand = iota
	OperandB
)

func (o Operand) String() string {
	if o == OperandB {
		return "B"
	}
	return "A"
}

// InvalidInputError reports an input that fails the solidity
// precondition (open, non-manifold or inconsistently oriented).
type InvalidInputError struct {
	Operand Operand
	Reason  string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Operand, e.Reason)
}

// IntersectionTopologyError reports an intersection curve that cannot
// be closed into consistent loops.
type IntersectionTopologyError struct {
	Message string
}

func (e *IntersectionTopologyError) Error() string {
	return "intersection topology: " + e.Message
}

// EmptyOperandError reports an operand that contributed no patches to
// an operation that needs it.
type EmptyOperandError struct {
	Operand Operand
	Op      string
}

func (e *EmptyOperandError) Error() string {
	return fmt.Sprintf("%s: operand %s is empty", e.Op, e.Operand)
}

// NonManifoldResultError reports a stitched result with an edge that is
// not shared by exactly two oppositely wound triangles.
type NonManifoldResultError struct {
	Edge     [2]uint32
	Incident int
	Message  string
}

func (e *NonManifoldResultError) Error() string {
	return fmt.Sprintf("non-manifold result at edge (%d,%d): %s (%d incident)",
		e.Edge[0], e.Edge[1], e.Message, e.Incident)
}

// ErrDegenerate marks a configuration the current pass could not decide
// (coplanar overlap, a vertex on a face, an edge through an edge). The
// pipeline handles it internally by perturbing and retrying; callers only
// see it if every attempt was degenerate, wrapped in an
// IntersectionTopologyError.
var ErrDegenerate = errors.New("degenerate configuration")
