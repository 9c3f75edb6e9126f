// Package gate implements the four-kind tagged-variant gate model of a
// GPAC circuit: Constant, Add, Prod, and Int (integration). A gate never
// owns other gates — inputs are referenced by name and resolved through
// the owning Circuit's gate table (see package circuit).
package gate

import "fmt"

// Kind tags which of the four gate variants a Gate value holds.
type Kind int

const (
	// Constant holds an immutable real value.
	Constant Kind = iota
	// Add computes X + Y. Commutative; the simplifier may reorder X, Y.
	Add
	// Prod computes X * Y. Commutative; the simplifier may reorder X, Y.
	Prod
	// Int computes g' = X * Y' (X integrated against the differential of
	// Y). Non-commutative. Normalized when Y is the pseudo-gate "t".
	Int
)

// String returns the Kind's name, used in diagnostics and the DOT export.
func (k Kind) String() string {
	switch k {
	case Constant:
		return "Constant"
	case Add:
		return "Add"
	case Prod:
		return "Prod"
	case Int:
		return "Int"
	default:
		return "Unknown"
	}
}

// Name identifies a gate within a circuit. The identifier "t" is reserved
// for the independent-variable pseudo-gate; identifiers beginning with
// "_" are reserved for compiler-generated fresh names.
type Name = string

// T is the reserved name of the independent-variable pseudo-gate.
const T Name = "t"

// Gate is a tagged variant over the four gate kinds. Only the fields
// relevant to Kind are meaningful; the zero value of the others is
// ignored. Binary gates (Add, Prod, Int) reference their inputs by name,
// not by pointer, so that Int gates may legitimately close cycles without
// the host language needing to support cyclic ownership.
type Gate struct {
	Kind  Kind
	Value float64 // meaningful for Constant
	X, Y  Name     // meaningful for Add, Prod, Int
}

// NewConstant builds a Constant gate holding value.
func NewConstant(value float64) Gate {
	return Gate{Kind: Constant, Value: value}
}

// NewAdd builds an Add gate computing x + y.
func NewAdd(x, y Name) Gate {
	return Gate{Kind: Add, X: x, Y: y}
}

// NewProd builds a Prod gate computing x * y.
func NewProd(x, y Name) Gate {
	return Gate{Kind: Prod, X: x, Y: y}
}

// NewInt builds an Int gate computing g' = x * y'.
func NewInt(x, y Name) Gate {
	return Gate{Kind: Int, X: x, Y: y}
}

// IsBinary reports whether g references other gates through X and Y.
func (g Gate) IsBinary() bool {
	return g.Kind == Add || g.Kind == Prod || g.Kind == Int
}

// Normalized reports whether g is an Int gate whose differential
// variable is already t. Non-Int gates are trivially considered
// normalized (the normalizer only ever acts on Int gates).
func (g Gate) Normalized() bool {
	return g.Kind != Int || g.Y == T
}

// Eval computes the numeric result of an Add or Prod gate given its two
// input values. ok is false for Constant and Int gates, which the ODE
// driver and circuit container handle through their own value tables.
func (g Gate) Eval(a, b float64) (result float64, ok bool) {
	switch g.Kind {
	case Add:
		return a + b, true
	case Prod:
		return a * b, true
	default:
		return 0, false
	}
}

// String renders the gate in the circuit source-form syntax:
// "c", "x + y", "x * y", or "int x d(y)".
func (g Gate) String() string {
	switch g.Kind {
	case Constant:
		return formatFloat(g.Value)
	case Add:
		return fmt.Sprintf("%s + %s", g.X, g.Y)
	case Prod:
		return fmt.Sprintf("%s * %s", g.X, g.Y)
	case Int:
		return fmt.Sprintf("int %s d(%s)", g.X, g.Y)
	default:
		return "?"
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
