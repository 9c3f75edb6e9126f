package algebra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/ode"
	"github.com/mvance/gpac/simplify"
)

func identity() *circuit.Circuit {
	c := circuit.New("Identity")
	c.SetOutput(gate.T)
	return c
}

func constant(v float64) *circuit.Circuit {
	c := circuit.New("Constant")
	n, _ := c.AddConst("", v)
	c.SetOutput(n)
	return c
}

func exp() *circuit.Circuit {
	c := circuit.New("Exp")
	name := c.FreshName()
	z, _ := c.AddInt(name, name, gate.T, 1)
	c.SetOutput(z)
	return c
}

func finalized(c *circuit.Circuit) *circuit.Circuit {
	if err := simplify.Finalize(c, false); err != nil {
		panic(err)
	}
	return c
}

func TestSum(t *testing.T) {
	out, err := Sum(constant(2), constant(3))
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))
	v, err := ode.OutputValue(out, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestProduct(t *testing.T) {
	out, err := Product(constant(2), constant(3))
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))
	v, err := ode.OutputValue(out, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
}

func TestDifference(t *testing.T) {
	out, err := Difference(constant(5), constant(2))
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))
	v, err := ode.OutputValue(out, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestAddScalarMulScalar(t *testing.T) {
	out, err := AddScalar(identity(), 10)
	require.NoError(t, err)
	out, err = MulScalar(out, 2)
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))

	v, err := ode.OutputValue(out, 3, []float64{})
	require.NoError(t, err)
	assert.Equal(t, (3.0+10)*2, v)
}

func TestIntegrateOfOne(t *testing.T) {
	// integral of the constant 1 with respect to t, starting at 0, is t.
	out, err := Integrate(constant(1), identity(), 0)
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))

	y0 := make([]float64, len(out.IntGates))
	for i, n := range out.IntGates {
		y0[i] = out.InitValues[n]
	}
	field, err := ode.VectorField(out)
	require.NoError(t, err)
	y, err := ode.RK4(field, y0, 0, 1, 0.001, nil)
	require.NoError(t, err)
	v, err := ode.OutputValue(out, 1, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-3)
}

func TestDerivateOfExp(t *testing.T) {
	e := finalized(exp())
	d, err := Derivate(e)
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(d, true))

	y0 := make([]float64, len(d.IntGates))
	for i, n := range d.IntGates {
		y0[i] = d.InitValues[n]
	}
	v, err := ode.OutputValue(d, 0, y0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9, "d/dt(e^t) at t=0 should equal e^0=1")
}

func TestInverseRejectsZeroAtOrigin(t *testing.T) {
	_, err := Inverse(finalized(identity()))
	assert.Error(t, err, "Inverse of t is undefined at t=0")
}

func TestInverseOfConstant(t *testing.T) {
	out, err := Inverse(finalized(constant(2)))
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))
	v, err := ode.OutputValue(out, 0, []float64{0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)
}

func TestComposeRequiresFinalizedOperands(t *testing.T) {
	_, err := Compose(identity(), identity())
	assert.Error(t, err, "Compose must reject unfinalized operands")
}

func TestComposeIdentityIsNoOp(t *testing.T) {
	e := finalized(exp())
	out, err := Compose(e, finalized(identity()))
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))
	v, err := ode.OutputValue(out, 0, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestComposePropagatesNonzeroInitialValue(t *testing.T) {
	// Regression test: when B's value at t=0 is nonzero (exp(0) = 1), its
	// own gate must end up holding its propagated (integrated-forward)
	// init value, not its raw pre-propagation one. Both operands
	// independently fresh-name their own Int gate "_1", so this also
	// exercises merge's collision-renaming path: before the merge/import
	// reordering fix, B's gate either never received the propagated
	// value (ImportValues ran before B's gates existed in out) or had it
	// clobbered straight back by merge's unconditional init-value copy.
	a := finalized(exp())
	b := finalized(exp())
	bGate := b.Output
	bRawInit := b.InitValues[bGate]

	out, err := Compose(a, b)
	require.NoError(t, err)

	got, ok := out.InitValues[bGate]
	require.True(t, ok, "B's gate must survive merge under its original name")
	assert.InDelta(t, math.Exp(1), got, 1e-6, "B's gate must hold its value propagated forward to b0, not its raw init value")
	assert.NotEqual(t, bRawInit, got, "propagation must actually take effect rather than being clobbered")
}

func TestIterateZeroIsIdentity(t *testing.T) {
	out, err := Iterate(finalized(exp()), 0)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	v, err := ode.OutputValue(out, 2.5, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}

func TestIterateChainsComposeAcrossMultipleSquarings(t *testing.T) {
	// Regression test: Iterate's internal repeated-squaring loop must
	// re-finalize intermediate Compose results, or a third Compose call
	// (n=3 needs two squarings) fails Compose's finalized-operand check.
	base := finalized(scaledIdentityForTest(2)) // t -> 2t
	out, err := Iterate(base, 3)
	require.NoError(t, err)
	require.NoError(t, simplify.Finalize(out, true))

	v, err := ode.OutputValue(out, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, v, 1e-9, "(t->2t) applied 3 times at t=1 is 8")
}

func scaledIdentityForTest(k float64) *circuit.Circuit {
	out, err := MulScalar(identity(), k)
	if err != nil {
		panic(err)
	}
	return out
}
