// Package export renders a finalized (or in-progress) circuit in the
// three textual forms spec §4.G and §6 describe: a Graphviz DOT graph,
// a LaTeX polynomial-IVP listing, and the gate-list source form that
// gpacfile.Parse can read back. Grounded on the other_examples
// reference circuit.Dot writer (plain fmt.Fprintf digraph emission, no
// graphviz dependency required).
package export

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
)

// DOT writes a Graphviz "digraph" rendering of c: one box node per
// gate plus one plaintext node for t, an edge per input (the Y edge of
// an Int gate is omitted when Y is t — it is implicit — and dashed
// otherwise, per spec §4.G), and a double-bordered node for the
// circuit's output.
func DOT(w io.Writer, c *circuit.Circuit) {
	fmt.Fprintf(w, "digraph %s {\n", dotID(c.Name))
	fmt.Fprintf(w, "  rankdir=LR;\n")
	fmt.Fprintf(w, "  node [fontname=\"Helvetica\"];\n")
	fmt.Fprintf(w, "  t [shape=plaintext, label=\"t\"];\n")

	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		shape := "box"
		if n == c.Output {
			shape = "doublecircle"
		}
		fmt.Fprintf(w, "  %s [shape=%s, label=%q];\n", dotID(n), shape, n+": "+g.String())
	}

	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if !g.IsBinary() {
			continue
		}
		fmt.Fprintf(w, "  %s -> %s;\n", dotID(g.X), dotID(n))
		if g.Kind == gate.Int {
			if g.Y == gate.T {
				continue
			}
			fmt.Fprintf(w, "  %s -> %s [style=dashed];\n", dotID(g.Y), dotID(n))
		} else {
			fmt.Fprintf(w, "  %s -> %s;\n", dotID(g.Y), dotID(n))
		}
	}
	fmt.Fprintf(w, "}\n")
}

// dotID escapes a gate name for use as a bare Graphviz identifier; "_"
// and alphanumerics are already safe, "t" is reserved separately.
func dotID(name gate.Name) string {
	if name == gate.T {
		return "t"
	}
	return "n_" + name
}

// LaTeX writes the polynomial-IVP form of a finalized circuit: one
// line per Int gate giving its ODE and initial value, followed by the
// output expression, each rendered through TermLaTeX (which writes the
// expression tree as built, without expanding it into a sum of
// monomials).
func LaTeX(w io.Writer, c *circuit.Circuit) {
	fmt.Fprintf(w, "\\begin{align*}\n")
	for _, n := range c.IntGateNames() {
		g := c.Gates[n]
		fmt.Fprintf(w, "  %s' &= %s, & %s(0) &= %s \\\\\n",
			texName(n), TermLaTeX(c, g.X), texName(n), formatLaTeXNumber(c.InitValues[n]))
	}
	fmt.Fprintf(w, "  y &= %s\n", TermLaTeX(c, c.Output))
	fmt.Fprintf(w, "\\end{align*}\n")
}

// TermLaTeX renders the gate named n as a LaTeX expression, recursing
// structurally through Add/Prod gates (each Add parenthesized, each
// Prod joined by \cdot) and stopping at Constant, Int, and t leaves. It
// does not expand products over sums or collect like terms, so the
// result is not a normal form (an Int
// gate's own symbol, not its definition, is used — its definition is
// already listed on its own align line).
func TermLaTeX(c *circuit.Circuit, n gate.Name) string {
	if n == gate.T {
		return "t"
	}
	g, ok := c.Gates[n]
	if !ok {
		return texName(n)
	}
	switch g.Kind {
	case gate.Constant:
		return formatLaTeXNumber(g.Value)
	case gate.Add:
		return fmt.Sprintf("\\left(%s + %s\\right)", TermLaTeX(c, g.X), TermLaTeX(c, g.Y))
	case gate.Prod:
		return fmt.Sprintf("%s \\cdot %s", TermLaTeX(c, g.X), TermLaTeX(c, g.Y))
	case gate.Int:
		return texName(n)
	default:
		return texName(n)
	}
}

func texName(n gate.Name) string {
	return "\\mathit{" + n + "}"
}

// formatLaTeXNumber rounds v to 10 decimal places before formatting, so
// that values differing only by float64 rounding noise (e.g. after a
// chain of constant-folding passes) render identically.
func formatLaTeXNumber(v float64) string {
	return fmt.Sprintf("%g", floats.Round(v, 10))
}

// SourceDump renders c as a .gpac gate-list definition (spec §6 form 1).
// The grammar has no explicit output marker, so (consistent with the
// gpacfile package's own resolution of that Open Question) the output
// gate is emitted last and every other gate precedes it in name order —
// dumping in any other order would change what a re-parse treats as the
// circuit's output.
func SourceDump(w io.Writer, c *circuit.Circuit) {
	if c.Output == gate.T {
		fmt.Fprintf(w, "Circuit %s = Identity;\n", c.Name)
		return
	}

	fmt.Fprintf(w, "Circuit %s:\n", c.Name)
	writeGateLine := func(n gate.Name) {
		g := c.Gates[n]
		switch g.Kind {
		case gate.Constant:
			fmt.Fprintf(w, "  %s: %s\n", n, formatLaTeXNumber(g.Value))
		case gate.Add:
			fmt.Fprintf(w, "  %s: %s + %s\n", n, g.X, g.Y)
		case gate.Prod:
			fmt.Fprintf(w, "  %s: %s * %s\n", n, g.X, g.Y)
		case gate.Int:
			fmt.Fprintf(w, "  %s: int %s d(%s) | %g\n", n, g.X, g.Y, c.InitValues[n])
		}
	}
	for _, n := range c.SortedNames() {
		if n == c.Output {
			continue
		}
		writeGateLine(n)
	}
	writeGateLine(c.Output)
	fmt.Fprintln(w, ";")
}
