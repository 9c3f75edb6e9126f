package builtin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/ode"
)

// simulate integrates finalized circuit c from t=0 to at and returns its
// output value there.
func simulate(t *testing.T, c *circuit.Circuit, at float64) float64 {
	t.Helper()
	require.True(t, c.Finalized)
	field, err := ode.VectorField(c)
	require.NoError(t, err)
	y0 := make([]float64, len(c.IntGates))
	for i, n := range c.IntGates {
		y0[i] = c.InitValues[n]
	}
	y, err := ode.RK4(field, y0, 0, at, 0.0005, nil)
	require.NoError(t, err)
	v, err := ode.OutputValue(c, at, y)
	require.NoError(t, err)
	return v
}

func TestIdentity(t *testing.T) {
	c := mustFinalize(Identity())
	assert.Equal(t, 2.0, simulate(t, c, 2))
}

func TestConstant(t *testing.T) {
	c := mustFinalize(Constant(7))
	assert.Equal(t, 7.0, simulate(t, c, 5))
}

func TestExp(t *testing.T) {
	c := mustFinalize(Exp())
	assert.InDelta(t, math.Exp(1), simulate(t, c, 1), 1e-4)
}

func TestSinCos(t *testing.T) {
	sin := mustFinalize(Sin())
	cos := mustFinalize(Cos())
	assert.InDelta(t, math.Sin(1.3), simulate(t, sin, 1.3), 1e-3)
	assert.InDelta(t, math.Cos(1.3), simulate(t, cos, 1.3), 1e-3)
}

func TestTan(t *testing.T) {
	c := mustFinalize(Tan())
	assert.InDelta(t, math.Tan(0.5), simulate(t, c, 0.5), 1e-3)
}

func TestArctan(t *testing.T) {
	c := mustFinalize(Arctan())
	assert.InDelta(t, math.Atan(0.7), simulate(t, c, 0.7), 1e-3)
}

func TestTanh(t *testing.T) {
	c := mustFinalize(Tanh())
	assert.InDelta(t, math.Tanh(0.7), simulate(t, c, 0.7), 1e-3)
}

func TestSqrt(t *testing.T) {
	c := mustFinalize(Sqrt())
	assert.InDelta(t, math.Sqrt(2), simulate(t, c, 2), 1e-2)
}

func TestInverse(t *testing.T) {
	c := mustFinalize(Inverse())
	assert.InDelta(t, 1.0/2, simulate(t, c, 2), 1e-2)
}

func TestExp2(t *testing.T) {
	c := mustFinalize(Exp2())
	assert.InDelta(t, math.Pow(2, 3), simulate(t, c, 3), 1e-2)
}

func TestPowerPower2(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{0, 2}, // t^(2^0) = t, at t=2
		{1, 4}, // t^2
		{2, 16}, // t^4
		{3, 256}, // t^8
	}
	for _, c := range cases {
		circ := mustFinalize(PowerPower2(c.n))
		got := simulate(t, circ, 2)
		assert.InDelta(t, c.want, got, 1e-6, "PowerPower2(%d) at t=2", c.n)
	}
}

func TestPolynomial(t *testing.T) {
	// 1 + 2t + 3t^2 at t=2 -> 1 + 4 + 12 = 17
	c := mustFinalize(Polynomial([]float64{1, 2, 3}))
	assert.InDelta(t, 17.0, simulate(t, c, 2), 1e-9)
}

func TestPolynomialEmptyIsZero(t *testing.T) {
	c := mustFinalize(Polynomial(nil))
	assert.Equal(t, 0.0, simulate(t, c, 10))
}

func TestL2StartsAtOneHalfAndSaturates(t *testing.T) {
	c := mustFinalize(L2(10))
	assert.InDelta(t, 0.5, simulate(t, c, 0), 1e-9)
	assert.InDelta(t, 1.0, simulate(t, c, 3), 1e-2)
}

func TestRoundApproximatesNearestInteger(t *testing.T) {
	c := mustFinalize(Round())
	assert.InDelta(t, 2.0, simulate(t, c, 2.0), 0.05)
	assert.InDelta(t, 3.0, simulate(t, c, 3.0), 0.05)
}

func TestAbsIsSmoothAbsoluteValue(t *testing.T) {
	c := mustFinalize(Abs(1e-3))
	assert.InDelta(t, 2.0, simulate(t, c, 2), 1e-2)
}

func TestSgnApproachesSign(t *testing.T) {
	c := mustFinalize(Sgn(20))
	assert.InDelta(t, 1.0, simulate(t, c, 1), 1e-2)
	assert.InDelta(t, -1.0, simulate(t, c, -1), 1e-2)
}

func TestIp1ApproachesUnitStep(t *testing.T) {
	c := mustFinalize(Ip1(20))
	assert.InDelta(t, 1.0, simulate(t, c, 1), 1e-2)
	assert.InDelta(t, 0.0, simulate(t, c, -1), 1e-2)
}

func TestLxhApproachesRampFunction(t *testing.T) {
	c := mustFinalize(Lxh())
	assert.InDelta(t, 2.0, simulate(t, c, 2), 1e-2)
	assert.InDelta(t, 0.0, simulate(t, c, -2), 1e-2)
}

func TestMaxApproachesMaximum(t *testing.T) {
	out, err := Max(mustFinalize(Constant(3)), mustFinalize(Constant(5)))
	require.NoError(t, err)
	c := mustFinalize(out)
	assert.InDelta(t, 5.0, simulate(t, c, 0), 1e-2)
}

func TestSelectChoosesBasedOnCondition(t *testing.T) {
	out, err := Select(mustFinalize(Identity()), mustFinalize(Constant(10)), mustFinalize(Constant(20)), 1e-2)
	require.NoError(t, err)
	c := mustFinalize(out)
	assert.InDelta(t, 20.0, simulate(t, c, 1), 1e-1, "positive condition selects b")
	assert.InDelta(t, 10.0, simulate(t, c, -1), 1e-1, "negative condition selects a")
}

func TestUpsilonIsAPulse(t *testing.T) {
	c := mustFinalize(Upsilon())
	assert.InDelta(t, 0.0, simulate(t, c, -1), 0.05, "before the pulse")
	assert.InDelta(t, 1.0, simulate(t, c, 0.5), 0.05, "inside the pulse")
	assert.InDelta(t, 0.0, simulate(t, c, 2), 0.05, "after the pulse")
}
