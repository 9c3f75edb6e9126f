// Package gpacerr defines the typed error taxonomy used across the GPAC
// engine. The circuit and algebra packages, gpacfile.Load and the CLI wrap
// these with github.com/pkg/errors so a %+v format at the CLI prints the
// causal chain; normalize, simplify and ode return them unwrapped.
package gpacerr

import "fmt"

// CircuitError reports a name, structural, or algebra error (spec §7).
// Op is the operation that failed ("Circuit.AddInt", "Sum", ...); Gate is
// the offending gate name, empty if not gate-specific.
type CircuitError struct {
	Op      string
	Gate    string
	Message string
}

func (e *CircuitError) Error() string {
	if e.Gate != "" {
		return fmt.Sprintf("gpac: %s: gate %q: %s", e.Op, e.Gate, e.Message)
	}
	return fmt.Sprintf("gpac: %s: %s", e.Op, e.Message)
}

// NewCircuitError constructs a CircuitError without a specific gate.
func NewCircuitError(op, message string) *CircuitError {
	return &CircuitError{Op: op, Message: message}
}

// NewGateError constructs a CircuitError anchored to a specific gate name.
func NewGateError(op, gate, message string) *CircuitError {
	return &CircuitError{Op: op, Gate: gate, Message: message}
}

// NormalizationError reports an Int gate whose differential variable
// cannot be rewritten by any of the three normalizer cases (spec §4.D).
type NormalizationError struct {
	Gate    string
	Message string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("gpac: normalize: gate %q: %s", e.Gate, e.Message)
}

// NewNormalizationError constructs a NormalizationError.
func NewNormalizationError(gate, message string) *NormalizationError {
	return &NormalizationError{Gate: gate, Message: message}
}

// PropagationError reports that the ODE vector-field evaluator reached a
// fixpoint with some gate still unvalued — an algebraic cycle (spec §4.F).
type PropagationError struct {
	Gate string
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("gpac: ode: propagation did not converge: gate %q never received a value (algebraic cycle?)", e.Gate)
}

// NewPropagationError constructs a PropagationError.
func NewPropagationError(gate string) *PropagationError {
	return &PropagationError{Gate: gate}
}

// ParseError reports a lexical or syntactic failure in the .gpac file
// format (spec §6), with line/column position for diagnostics.
type ParseError struct {
	Line, Column int
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gpac: parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// NewParseError constructs a ParseError.
func NewParseError(line, column int, message string) *ParseError {
	return &ParseError{Line: line, Column: column, Message: message}
}
