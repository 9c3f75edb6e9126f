// Package algebra implements the GPAC algebraic builder of spec §4.C:
// the composition operators (Sum, Product, Difference, Divide,
// Compose, Integrate, Derivate, Inverse, Iterate) that construct new
// circuits from existing ones. It sits above circuit, normalize, and
// ode because Compose must re-normalize after substitution and must
// pre-simulate the inner circuit to propagate initial values.
package algebra

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
	"github.com/mvance/gpac/normalize"
	"github.com/mvance/gpac/ode"
	"github.com/mvance/gpac/simplify"
)

// merge splices a clone of src into dst: any gate of dst that collides
// with a name used in src is renamed to a fresh dst name first (so
// every src gate keeps its original name), then every src gate and init
// value is copied into dst unchanged (spec §4.C: "rename every gate of
// A that collides with B to a fresh name... copy B into A").
func merge(dst, src *circuit.Circuit) {
	for _, n := range dst.SortedNames() {
		if _, collide := src.Gates[n]; collide {
			var fresh gate.Name
			for {
				fresh = dst.FreshName()
				if _, stillCollides := src.Gates[fresh]; !stillCollides {
					break
				}
			}
			dst.RenameGate(n, fresh)
			dst.RenameInputs(n, fresh)
		}
	}

	for _, n := range src.SortedNames() {
		dst.Gates[n] = src.Gates[n]
		if v, ok := src.InitValues[n]; ok {
			dst.InitValues[n] = v
		}
	}
}

// findOrCreateConstant returns the name of an existing Constant gate
// holding value, or creates one if none exists (spec §4.C "Scalar ops").
func findOrCreateConstant(c *circuit.Circuit, value float64) gate.Name {
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if g.Kind == gate.Constant && g.Value == value {
			return n
		}
	}
	n, _ := c.AddConst("", value)
	return n
}

func requireOutput(c *circuit.Circuit, op string) error {
	if c.Output == "" {
		return gpacerr.NewCircuitError(op, "circuit has no output")
	}
	return nil
}

// Sum returns A + B: a clone of A with B spliced in and a fresh Add
// gate over their two outputs, designated as the new output.
func Sum(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Sum"); err != nil {
		return nil, err
	}
	if err := requireOutput(b, "Sum"); err != nil {
		return nil, err
	}
	out := a.Clone()
	merge(out, b)
	bOut := b.Output
	name, _ := out.AddAdd("", out.Output, bOut)
	out.SetOutput(name)
	return out, nil
}

// Product returns A * B, symmetric to Sum using a Prod gate.
func Product(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Product"); err != nil {
		return nil, err
	}
	if err := requireOutput(b, "Product"); err != nil {
		return nil, err
	}
	out := a.Clone()
	merge(out, b)
	bOut := b.Output
	name, _ := out.AddProd("", out.Output, bOut)
	out.SetOutput(name)
	return out, nil
}

// AddScalar returns A + c, reusing an existing Constant gate holding c
// if the circuit already has one.
func AddScalar(a *circuit.Circuit, c float64) (*circuit.Circuit, error) {
	if err := requireOutput(a, "AddScalar"); err != nil {
		return nil, err
	}
	out := a.Clone()
	cName := findOrCreateConstant(out, c)
	name, _ := out.AddAdd("", out.Output, cName)
	out.SetOutput(name)
	return out, nil
}

// MulScalar returns A * c, reusing an existing Constant gate holding c
// if the circuit already has one.
func MulScalar(a *circuit.Circuit, c float64) (*circuit.Circuit, error) {
	if err := requireOutput(a, "MulScalar"); err != nil {
		return nil, err
	}
	out := a.Clone()
	cName := findOrCreateConstant(out, c)
	name, _ := out.AddProd("", out.Output, cName)
	out.SetOutput(name)
	return out, nil
}

// Difference returns A - B = A + ((-1) * B).
func Difference(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	negB, err := MulScalar(b, -1)
	if err != nil {
		return nil, errors.Wrap(err, "Difference")
	}
	return Sum(a, negB)
}

// Integrate builds a new Int gate over A's output with respect to B's
// output, with the given initial value, added to a clone of A merged
// with B and designated as the new output.
func Integrate(a, b *circuit.Circuit, init float64) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Integrate"); err != nil {
		return nil, err
	}
	if err := requireOutput(b, "Integrate"); err != nil {
		return nil, err
	}
	out := a.Clone()
	merge(out, b)
	bOut := b.Output
	name, err := out.AddInt("", out.Output, bOut, init)
	if err != nil {
		return nil, errors.Wrap(err, "Integrate")
	}
	out.SetOutput(name)
	return out, nil
}

// Derivate returns the circuit whose output is d/dt of A's output,
// using (x+y)'=x'+y', (xy)'=x'y+xy', (int f dt)'=f, t'=1, and constants
// differentiating to 0. A need not be finalized, but every Int gate
// reached from its output must already be normalized (Y == t);
// Derivate returns an error when it reaches one that is not.
func Derivate(a *circuit.Circuit) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Derivate"); err != nil {
		return nil, err
	}
	out := a.Clone()
	memo := make(map[gate.Name]gate.Name)

	var derive func(gate.Name) (gate.Name, error)
	derive = func(n gate.Name) (gate.Name, error) {
		if n == gate.T {
			return findOrCreateConstant(out, 1), nil
		}
		if d, ok := memo[n]; ok {
			return d, nil
		}
		g, exists := out.Gates[n]
		if !exists {
			return "", gpacerr.NewGateError("Derivate", n, "gate does not exist")
		}
		var result gate.Name
		switch g.Kind {
		case gate.Constant:
			result = findOrCreateConstant(out, 0)

		case gate.Add:
			dx, err := derive(g.X)
			if err != nil {
				return "", err
			}
			dy, err := derive(g.Y)
			if err != nil {
				return "", err
			}
			result, _ = out.AddAdd("", dx, dy)

		case gate.Prod:
			dx, err := derive(g.X)
			if err != nil {
				return "", err
			}
			dy, err := derive(g.Y)
			if err != nil {
				return "", err
			}
			t1, _ := out.AddProd("", dx, g.Y)
			t2, _ := out.AddProd("", g.X, dy)
			result, _ = out.AddAdd("", t1, t2)

		case gate.Int:
			if g.Y != gate.T {
				return "", gpacerr.NewGateError("Derivate", n, "cannot differentiate a non-normalized Int gate")
			}
			result = g.X

		default:
			return "", gpacerr.NewGateError("Derivate", n, "unknown gate kind")
		}
		memo[n] = result
		return result, nil
	}

	outName, err := derive(out.Output)
	if err != nil {
		return nil, errors.Wrap(err, "Derivate")
	}
	out.SetOutput(outName)
	return out, nil
}

// Inverse returns a circuit computing 1/A(t), introducing an auxiliary
// integration: if A' is A's derivative circuit and z is a new Int gate
// with z(0) = 1/A(0), then z' = -A' * z^2 (spec §4.C). Fails with an
// algebra error if A(0) == 0.
func Inverse(a *circuit.Circuit) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Inverse"); err != nil {
		return nil, err
	}

	a0, err := initialValue(a)
	if err != nil {
		return nil, errors.Wrap(err, "Inverse")
	}
	if a0 == 0 {
		return nil, gpacerr.NewCircuitError("Inverse", "A(0) == 0: inverse is undefined at the start point")
	}

	deriv, err := Derivate(a)
	if err != nil {
		return nil, errors.Wrap(err, "Inverse")
	}

	out := a.Clone()
	merge(out, deriv)
	derivOut := deriv.Output

	zName := out.FreshName()
	negDeriv, _ := out.AddProd("", derivOut, findOrCreateConstant(out, -1))
	zSq, err := out.AddProd("", zName, zName)
	if err != nil {
		return nil, errors.Wrap(err, "Inverse")
	}
	integrand, _ := out.AddProd("", negDeriv, zSq)
	assigned, err := out.AddInt(zName, integrand, gate.T, 1/a0)
	if err != nil {
		return nil, errors.Wrap(err, "Inverse")
	}
	out.SetOutput(assigned)
	return out, nil
}

// Divide returns A / B via B's Inverse: A * Inverse(B).
func Divide(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	invB, err := Inverse(b)
	if err != nil {
		return nil, errors.Wrap(err, "Divide")
	}
	return Product(a, invB)
}

// Compose returns A composed with B (A applied to B's output, written
// A o B in spec.md): every t reference inside A's portion is replaced
// by B's output, and the result is re-normalized. Per the resolution of
// Open Question (b) in spec §9, both A and B must already be finalized;
// Compose returns a structural error otherwise rather than silently
// pre-simulating an unfinalized inner circuit.
func Compose(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	if err := requireOutput(a, "Compose"); err != nil {
		return nil, err
	}
	if err := requireOutput(b, "Compose"); err != nil {
		return nil, err
	}
	if !a.Finalized || !b.Finalized {
		return nil, gpacerr.NewCircuitError("Compose", "both circuits must be finalized before composition")
	}
	if a.Output == gate.T {
		return b.Clone(), nil
	}
	if b.Output == gate.T {
		return a.Clone(), nil
	}

	b0, err := initialValue(b)
	if err != nil {
		return nil, errors.Wrap(err, "Compose")
	}

	out := a.Clone()
	// Park A's t references under a name used by neither A nor B, so the
	// substitution below reaches A's portion only.
	placeholder := out.FreshName()
	for {
		if _, inB := b.Gates[placeholder]; !inB {
			break
		}
		placeholder = out.FreshName()
	}
	out.RenameInputs(gate.T, placeholder)
	merge(out, b)
	bOut := b.Output

	if b0 != 0 {
		propagated, perr := propagatedInitValues(b, b0)
		if perr != nil {
			return nil, errors.Wrap(perr, "Compose")
		}
		if b0 < 0 {
			for n, v := range propagated {
				propagated[n] = -v
			}
		}
		out.ImportValues(propagated)
	}

	out.RenameInputs(placeholder, bOut)

	if err := normalize.Normalize(out); err != nil {
		return nil, errors.Wrap(err, "Compose")
	}
	return out, nil
}

// initialValue returns a finalized circuit's output value at t=0 by one
// propagation pass (ode.OutputValue) over its Int gates' initial values.
func initialValue(c *circuit.Circuit) (float64, error) {
	if !c.Finalized {
		return 0, gpacerr.NewCircuitError("initialValue", "circuit must be finalized")
	}
	y0 := make([]float64, len(c.IntGates))
	for i, name := range c.IntGates {
		y0[i] = c.InitValues[name]
	}
	return ode.OutputValue(c, 0, y0)
}

// propagatedInitValues integrates B's circuit from 0 to b0 (B's value
// at t=0) to obtain every Int gate's value at the new start point, as
// spec §4.C describes for Compose's initial-value propagation.
func propagatedInitValues(b *circuit.Circuit, b0 float64) (map[gate.Name]float64, error) {
	y0 := make([]float64, len(b.IntGates))
	for i, name := range b.IntGates {
		y0[i] = b.InitValues[name]
	}
	step := b0 / 100
	if step == 0 {
		step = 1e-3
	}
	yEnd, err := ode.RK4(mustField(b), y0, 0, b0, math.Abs(step), nil)
	if err != nil {
		return nil, err
	}
	out := make(map[gate.Name]float64, len(b.IntGates))
	for i, name := range b.IntGates {
		out[name] = yEnd[i]
	}
	return out, nil
}

func mustField(c *circuit.Circuit) ode.Field {
	f, err := ode.VectorField(c)
	if err != nil {
		// c.Finalized is already guaranteed by the caller; VectorField
		// cannot fail once that invariant holds.
		panic(err)
	}
	return f
}

// Iterate returns the n-fold self-composition of a with itself, using
// binary exponentiation over Compose.
func Iterate(a *circuit.Circuit, n int) (*circuit.Circuit, error) {
	if n < 0 {
		return nil, gpacerr.NewCircuitError("Iterate", "n must be non-negative")
	}
	if n == 0 {
		identity := a.Clone()
		identity.Gates = map[gate.Name]gate.Gate{}
		identity.InitValues = map[gate.Name]float64{}
		identity.SetOutput(gate.T)
		identity.Finalized = true
		identity.IntGates = nil
		return identity, nil
	}

	var err error
	base := a.Clone()
	var acc *circuit.Circuit
	for n > 0 {
		if n&1 == 1 {
			if acc == nil {
				acc = base.Clone()
			} else {
				acc, err = Compose(acc, base)
				if err != nil {
					return nil, errors.Wrap(err, "Iterate")
				}
				// Compose leaves its result unfinalized (RenameInputs
				// resets the flag during t-substitution); the next
				// Compose call requires both operands finalized.
				if err := simplify.Finalize(acc, false); err != nil {
					return nil, errors.Wrap(err, "Iterate")
				}
			}
		}
		n >>= 1
		if n > 0 {
			base, err = Compose(base, base)
			if err != nil {
				return nil, errors.Wrap(err, "Iterate")
			}
			if err := simplify.Finalize(base, false); err != nil {
				return nil, errors.Wrap(err, "Iterate")
			}
		}
	}
	return acc, nil
}
