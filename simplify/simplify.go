// Package simplify implements the simplifier and validator passes of
// spec §4.E (constant folding, dead-code elimination, canonicalization,
// common-subexpression elimination, and structural validation) and the
// Finalize orchestration of spec §4.E's last paragraph: normalize ->
// simplify (optional) -> validate -> assert init values -> compute
// IntGates -> lock Finalized.
package simplify

import (
	"sort"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
	"github.com/mvance/gpac/normalize"
)

// Finalize normalizes c, optionally simplifies it, validates structural
// invariants, asserts every Int gate has an initial value, computes the
// cached IntGates order, and sets Finalized. It is idempotent: calling
// Finalize twice in a row on an already-finalized, unmutated circuit is
// a no-op (spec §8 invariant 3).
func Finalize(c *circuit.Circuit, doSimplify bool) error {
	if c.Finalized {
		return nil
	}
	if err := normalize.Normalize(c); err != nil {
		return err
	}
	if doSimplify {
		Simplify(c)
	}
	if err := Validate(c); err != nil {
		return err
	}
	for _, n := range c.IntGateNames() {
		if _, ok := c.InitValues[n]; !ok {
			return gpacerr.NewGateError("Finalize", n, "Int gate has no initial value")
		}
	}
	c.IntGates = c.IntGateNames()
	c.Finalized = true
	return nil
}

// Simplify runs the four ordered passes of spec §4.E once each:
// constant folding, dead-code elimination, canonicalization, and CSE
// (CSE iterates to its own fixpoint).
// It does not validate; call Validate separately (Finalize does both).
func Simplify(c *circuit.Circuit) {
	foldConstants(c)
	eliminateDeadCode(c)
	canonicalize(c)
	commonSubexpressionEliminate(c)
}

// foldConstants replaces any gate whose sub-DAG is composed entirely of
// Constant, Add, and Prod gates (no t, no Int) with a single Constant
// holding the evaluated value.
func foldConstants(c *circuit.Circuit) {
	memo := make(map[gate.Name]bool)
	var isFoldable func(gate.Name) bool
	isFoldable = func(n gate.Name) bool {
		if n == gate.T {
			return false
		}
		if v, ok := memo[n]; ok {
			return v
		}
		g, exists := c.Gates[n]
		if !exists {
			memo[n] = false
			return false
		}
		var result bool
		switch g.Kind {
		case gate.Constant:
			result = true
		case gate.Add, gate.Prod:
			result = isFoldable(g.X) && isFoldable(g.Y)
		case gate.Int:
			result = false
		}
		memo[n] = result
		return result
	}

	var eval func(gate.Name) float64
	eval = func(n gate.Name) float64 {
		g := c.Gates[n]
		switch g.Kind {
		case gate.Constant:
			return g.Value
		case gate.Add:
			return eval(g.X) + eval(g.Y)
		case gate.Prod:
			return eval(g.X) * eval(g.Y)
		}
		return 0
	}

	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if g.Kind == gate.Constant {
			continue
		}
		if isFoldable(n) {
			c.Gates[n] = gate.NewConstant(eval(n))
		}
	}
}

// eliminateDeadCode erases every gate not reachable from Output.
func eliminateDeadCode(c *circuit.Circuit) {
	live := c.Reachable(c.Output)
	for _, n := range c.SortedNames() {
		if !live[n] {
			c.EraseGate(n)
		}
	}
}

// canonicalize reorders Add/Prod inputs so X <= Y lexicographically.
func canonicalize(c *circuit.Circuit) {
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if (g.Kind == gate.Add || g.Kind == gate.Prod) && g.X > g.Y {
			g.X, g.Y = g.Y, g.X
			c.Gates[n] = g
		}
	}
}

// commonSubexpressionEliminate merges structurally identical gates to a
// fixpoint: equal-valued Constants, and Add/Prod/Int gates with
// identical (X, Y) (Int additionally requires equal initial values).
// When merging, a user-defined name (not starting with "_") survives
// over a generated one; ties break lexicographically.
func commonSubexpressionEliminate(c *circuit.Circuit) {
	for {
		if !cseOnePass(c) {
			return
		}
	}
}

func cseOnePass(c *circuit.Circuit) bool {
	type key struct {
		kind  gate.Kind
		x, y  gate.Name
		value float64
		hasV0 bool
		v0    float64
	}

	groups := make(map[key][]gate.Name)
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		var k key
		switch g.Kind {
		case gate.Constant:
			k = key{kind: gate.Constant, value: g.Value}
		case gate.Add, gate.Prod:
			k = key{kind: g.Kind, x: g.X, y: g.Y}
		case gate.Int:
			v0, ok := c.InitValues[n]
			k = key{kind: gate.Int, x: g.X, y: g.Y, hasV0: ok, v0: v0}
		}
		groups[k] = append(groups[k], n)
	}

	changed := false
	for _, names := range groups {
		if len(names) < 2 {
			continue
		}
		survivor := pickSurvivor(names)
		for _, loser := range names {
			if loser == survivor {
				continue
			}
			c.RenameInputs(loser, survivor)
			if c.Output == loser {
				c.Output = survivor
			}
			c.EraseGate(loser)
			changed = true
		}
	}
	return changed
}

// pickSurvivor prefers a user-defined name (no leading underscore) to a
// generated one; ties break lexicographically.
func pickSurvivor(names []gate.Name) gate.Name {
	sorted := append([]gate.Name(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		iUser := len(sorted[i]) == 0 || sorted[i][0] != '_'
		jUser := len(sorted[j]) == 0 || sorted[j][0] != '_'
		if iUser != jUser {
			return iUser
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

// Validate checks the structural invariants of spec §4.E step 5: every
// Binary input is t or a present gate; every Int has Y == t; Output is
// set and present (or t).
func Validate(c *circuit.Circuit) error {
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if !g.IsBinary() {
			continue
		}
		if g.X != gate.T {
			if _, ok := c.Gates[g.X]; !ok {
				return gpacerr.NewGateError("Validate", n, "input X references a non-existent gate")
			}
		}
		if g.Y != gate.T {
			if _, ok := c.Gates[g.Y]; !ok {
				return gpacerr.NewGateError("Validate", n, "input Y references a non-existent gate")
			}
		}
		if g.Kind == gate.Int && g.Y != gate.T {
			return gpacerr.NewGateError("Validate", n, "Int gate is not normalized: differential variable is not t")
		}
	}
	if c.Output == "" {
		return gpacerr.NewCircuitError("Validate", "circuit output is not set")
	}
	if c.Output != gate.T {
		if _, ok := c.Gates[c.Output]; !ok {
			return gpacerr.NewCircuitError("Validate", "circuit output references a non-existent gate")
		}
	}
	return nil
}
