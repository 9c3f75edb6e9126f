package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacfile"
	"github.com/mvance/gpac/ode"
	"github.com/mvance/gpac/simplify"
)

func expCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.New("Exp")
	name := c.FreshName()
	z, err := c.AddInt(name, name, gate.T, 1)
	require.NoError(t, err)
	c.SetOutput(z)
	require.NoError(t, simplify.Finalize(c, true))
	return c
}

func TestDOTContainsEveryGateAndOutput(t *testing.T) {
	c := expCircuit(t)
	var b strings.Builder
	DOT(&b, c)
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, "doublecircle", "the output gate is rendered as a doublecircle")
	assert.Contains(t, out, "t [shape=plaintext")
	for _, n := range c.SortedNames() {
		assert.Contains(t, out, dotID(n)+" [", "every gate has a node")
	}
}

func TestLaTeXContainsOneLinePerIntGate(t *testing.T) {
	c := expCircuit(t)
	var b strings.Builder
	LaTeX(&b, c)
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "\\begin{align*}"))
	assert.Contains(t, out, "' &=")
	assert.Equal(t, len(c.IntGateNames()), strings.Count(out, "' &="))
	assert.Contains(t, out, "\\end{align*}")
}

func TestTermLaTeXRecursesThroughAddProd(t *testing.T) {
	c := circuit.New("poly")
	a, _ := c.AddConst("a", 2)
	sum, _ := c.AddAdd("sum", a, gate.T)
	prod, _ := c.AddProd("prod", sum, a)
	c.SetOutput(prod)

	got := TermLaTeX(c, prod)
	assert.Contains(t, got, "\\cdot")
	assert.Contains(t, got, "+")
}

func TestFormatLaTeXNumberRoundsNoise(t *testing.T) {
	got := formatLaTeXNumber(0.1 + 0.2) // classic float64 rounding artifact
	assert.Equal(t, "0.3", got)
}

func TestSourceDumpRoundTripsThroughParserShape(t *testing.T) {
	c := expCircuit(t)
	var b strings.Builder
	SourceDump(&b, c)
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "Circuit Exp:"))
	assert.Contains(t, out, "int")

	doc, err := gpacfile.LoadString(out)
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(doc.Main, true))

	y0 := make([]float64, len(doc.Main.IntGates))
	for i, n := range doc.Main.IntGates {
		y0[i] = doc.Main.InitValues[n]
	}
	field, err := ode.VectorField(doc.Main)
	require.NoError(t, err)
	y, err := ode.RK4(field, y0, 0, 1, 0.0005, nil)
	require.NoError(t, err)
	v, err := ode.OutputValue(doc.Main, 1, y)
	require.NoError(t, err)
	assert.InDelta(t, 2.718281828, v, 1e-3, "dumped-and-reparsed Exp circuit must still integrate to e at t=1")
}

func TestSourceDumpOfIdentityUsesExpressionForm(t *testing.T) {
	c := circuit.New("Identity")
	c.SetOutput(gate.T)
	var b strings.Builder
	SourceDump(&b, c)
	out := b.String()
	assert.Equal(t, "Circuit Identity = Identity;\n", out)

	doc, err := gpacfile.LoadString(out)
	require.NoError(t, err)
	v, err := ode.OutputValue(doc.Main, 3.5, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}
