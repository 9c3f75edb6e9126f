package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
)

func TestNormalizeNoOpWhenAlreadyNormalized(t *testing.T) {
	c := circuit.New("identity")
	name := c.FreshName()
	z, _ := c.AddInt(name, name, gate.T, 1)
	c.SetOutput(z)

	require.NoError(t, Normalize(c))
	assert.True(t, c.Gates[z].Normalized())
}

// Case 3 (Y = Add): z = int x d(u+v) with u, v both non-constant splits
// into two Int gates, each over half the initial value.
func TestNormalizeCase3SplitsAdd(t *testing.T) {
	c := circuit.New("case3")
	u, _ := c.AddInt("u", gate.T, gate.T, 0) // non-constant, already normalized
	v, _ := c.AddInt("v", gate.T, gate.T, 0) // non-constant, already normalized
	sum, _ := c.AddAdd("sum", u, v)
	x, _ := c.AddConst("x", 2)
	z, _ := c.AddInt("z", x, sum, 10)
	c.SetOutput(z)

	require.NoError(t, Normalize(c))

	g := c.Gates["z"]
	assert.Equal(t, gate.Add, g.Kind, "z becomes a sum of the two split Int gates")
	left := c.Gates[g.X]
	right := c.Gates[g.Y]
	assert.Equal(t, gate.Int, left.Kind)
	assert.Equal(t, gate.Int, right.Kind)
	assert.True(t, left.Normalized())
	assert.True(t, right.Normalized())
	assert.Equal(t, 5.0, c.InitValues[g.X])
	assert.Equal(t, 5.0, c.InitValues[g.Y])
}

// Case 3a: Y = Add where one operand is a constant sub-expression drops
// out (d(u + k) = du).
func TestNormalizeCase3DropsConstantOperand(t *testing.T) {
	c := circuit.New("case3a")
	k, _ := c.AddConst("k", 7)
	u := gate.T
	sum, _ := c.AddAdd("sum", u, k)
	x, _ := c.AddConst("x", 1)
	z, _ := c.AddInt("z", x, sum, 3)
	c.SetOutput(z)

	require.NoError(t, Normalize(c))

	g := c.Gates["z"]
	require.Equal(t, gate.Int, g.Kind)
	assert.Equal(t, u, g.Y)
	assert.True(t, g.Normalized())
}

// Case 2 (Y = Prod) of two non-constant factors splits into two Int
// gates sharing the original initial value.
func TestNormalizeCase2SplitsProd(t *testing.T) {
	c := circuit.New("case2")
	u, _ := c.AddAdd("u", gate.T, gate.T)
	v, _ := c.AddAdd("v", gate.T, gate.T)
	prod, _ := c.AddProd("prod", u, v)
	x, _ := c.AddConst("x", 1)
	z, _ := c.AddInt("z", x, prod, 4)
	c.SetOutput(z)

	require.NoError(t, Normalize(c))

	g := c.Gates["z"]
	assert.Equal(t, gate.Add, g.Kind)
}

// Case 1 (Y is an already-normalized Int) multiplies through: z' =
// x*y', y' = u*t' -> z' = (x*u)*t'.
func TestNormalizeCase1ChainsThroughNormalizedInt(t *testing.T) {
	c := circuit.New("case1")
	u, _ := c.AddConst("u", 3)
	y, _ := c.AddInt("y", u, gate.T, 0)
	x, _ := c.AddConst("x", 2)
	z, _ := c.AddInt("z", x, y, 5)
	c.SetOutput(z)

	require.NoError(t, Normalize(c))

	g := c.Gates["z"]
	require.Equal(t, gate.Int, g.Kind)
	assert.True(t, g.Normalized())
	prod := c.Gates[g.X]
	assert.Equal(t, gate.Prod, prod.Kind)
}

func TestNormalizeFailsOnUnrewritableDifferential(t *testing.T) {
	c := circuit.New("bad")
	k, _ := c.AddConst("k", 1)
	// Force an Int whose Y is a Constant by bypassing AddInt's own guard:
	// build it with ValidationOnInsert off, then try to normalize.
	c.ValidationOnInsert = false
	x, _ := c.AddConst("x", 1)
	z, err := c.AddInt("z", x, k, 0)
	require.NoError(t, err)
	c.SetOutput(z)

	err = Normalize(c)
	assert.Error(t, err)
}
