package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvance/gpac/gate"
)

func TestAddConstAddProd(t *testing.T) {
	c := New("test")
	one, err := c.AddConst("one", 1)
	require.NoError(t, err)
	two, err := c.AddConst("two", 2)
	require.NoError(t, err)
	sum, err := c.AddAdd("", one, two)
	require.NoError(t, err)
	c.SetOutput(sum)

	g := c.Gates[sum]
	assert.Equal(t, gate.Add, g.Kind)
	assert.Equal(t, one, g.X)
	assert.Equal(t, two, g.Y)
}

func TestAddRejectsReservedNames(t *testing.T) {
	c := New("test")
	_, err := c.AddConst("t", 1)
	assert.Error(t, err, `"t" is reserved`)
	_, err = c.AddConst("_generated", 1)
	assert.Error(t, err, "leading underscore is reserved")
	_, err = c.AddConst("", 1)
	assert.NoError(t, err, "empty name mints a fresh one instead of erroring")
}

func TestAddBinaryRejectsMissingInput(t *testing.T) {
	c := New("test")
	_, err := c.AddAdd("sum", "nope", gate.T)
	assert.Error(t, err)
}

func TestAddIntSelfReference(t *testing.T) {
	// z' = z, z(0) = 1 (builtin.Exp's construction): a gate may legally
	// reference its own not-yet-inserted name.
	c := New("exp")
	name := c.FreshName()
	z, err := c.AddInt(name, name, gate.T, 1)
	require.NoError(t, err)
	assert.Equal(t, name, z)
	assert.Equal(t, 1.0, c.InitValues[z])
}

func TestAddIntRejectsConstantDifferential(t *testing.T) {
	c := New("test")
	k, _ := c.AddConst("k", 3)
	x, _ := c.AddConst("x", 1)
	_, err := c.AddInt("", x, k, 0)
	assert.Error(t, err, "Int gate's differential variable cannot be a Constant gate")
}

func TestRenameGateAndInputs(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	y, _ := c.AddAdd("y", x, gate.T)
	c.SetOutput(y)

	require.NoError(t, c.RenameGate("x", "x2"))
	c.RenameInputs("x", "x2")

	g := c.Gates["y"]
	assert.Equal(t, "x2", g.X)
	assert.Equal(t, "y", c.Output)
}

func TestRenameGateUpdatesOutput(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	c.SetOutput(x)
	require.NoError(t, c.RenameGate("x", "renamed"))
	assert.Equal(t, gate.Name("renamed"), c.Output)
}

func TestEraseGate(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	c.EraseGate(x)
	_, exists := c.Gates[x]
	assert.False(t, exists)
}

func TestCloneIsIndependent(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	c.SetOutput(x)

	clone := c.Clone()
	clone.AddConst("y", 2)

	_, existsInOriginal := c.Gates["y"]
	assert.False(t, existsInOriginal, "mutating the clone must not affect the original")
	assert.Equal(t, c.Output, clone.Output)
}

func TestFreshNameNeverCollides(t *testing.T) {
	c := New("test")
	seen := make(map[gate.Name]bool)
	for i := 0; i < 50; i++ {
		n := c.FreshName()
		assert.False(t, seen[n], "FreshName produced a duplicate: %s", n)
		seen[n] = true
		c.Gates[n] = gate.NewConstant(0)
	}
}

func TestSortedNamesDeterministic(t *testing.T) {
	c := New("test")
	c.AddConst("b", 1)
	c.AddConst("a", 2)
	c.AddConst("c", 3)
	assert.Equal(t, []gate.Name{"a", "b", "c"}, c.SortedNames())
}

func TestIntGateNames(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	c.AddInt("z", x, gate.T, 0)
	c.AddAdd("w", x, gate.T)
	assert.Equal(t, []gate.Name{"z"}, c.IntGateNames())
}

func TestReachable(t *testing.T) {
	c := New("test")
	x, _ := c.AddConst("x", 1)
	y, _ := c.AddAdd("y", x, gate.T)
	c.AddConst("unreachable", 99)

	live := c.Reachable(y)
	assert.True(t, live[y])
	assert.True(t, live[x])
	assert.False(t, live["unreachable"])
}
