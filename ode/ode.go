// Package ode implements the GPAC ODE driver (spec §4.F): building a
// vector field from a finalized circuit's cached integration-gate list,
// and integrating it with a classical fixed-step 4th-order Runge-Kutta
// method.
package ode

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
)

// Field is the vector field X of a finalized circuit: given the
// independent variable t and the state vector y (in c.IntGates order),
// it returns dy/dt.
type Field func(t float64, y []float64) ([]float64, error)

// VectorField builds the closure described in spec §4.F from a
// finalized circuit. c must have been finalized (c.Finalized == true
// and c.IntGates populated) or VectorField returns a structural error.
func VectorField(c *circuit.Circuit) (Field, error) {
	if !c.Finalized {
		return nil, gpacerr.NewCircuitError("ode.VectorField", "circuit must be finalized before building a vector field")
	}

	intGates := c.IntGates
	values := make(map[gate.Name]float64, len(c.Gates)+1)

	return func(t float64, y []float64) ([]float64, error) {
		if len(y) != len(intGates) {
			return nil, gpacerr.NewCircuitError("ode.VectorField", "state vector length does not match the number of integration gates")
		}

		for k := range values {
			delete(values, k)
		}
		for n, g := range c.Gates {
			if g.Kind == gate.Constant {
				values[n] = g.Value
			}
		}

		// Data-parallel site #1 (spec §5): pre-step assignment of the
		// state vector. Writes land at disjoint keys, so this loop may
		// be parallelized without locks; kept sequential here since
		// realistic circuits have tens of integration gates, not
		// enough to amortize goroutine overhead.
		for i, name := range intGates {
			values[name] = y[i]
		}
		values[gate.T] = t

		if err := propagate(c, values); err != nil {
			return nil, err
		}

		dydt := make([]float64, len(intGates))
		// Data-parallel site #2 (spec §5): post-propagation readout.
		for i, name := range intGates {
			g := c.Gates[name]
			v, ok := values[g.X]
			if !ok {
				return nil, gpacerr.NewPropagationError(g.X)
			}
			dydt[i] = v
		}
		return dydt, nil
	}, nil
}

// propagate repeatedly evaluates every Add/Prod gate whose inputs both
// have values until a fixpoint is reached. Returns a PropagationError
// naming a still-unvalued gate if the graph contains an algebraic
// cycle.
func propagate(c *circuit.Circuit, values map[gate.Name]float64) error {
	for {
		progress := false
		for _, n := range c.SortedNames() {
			if _, done := values[n]; done {
				continue
			}
			g := c.Gates[n]
			if g.Kind != gate.Add && g.Kind != gate.Prod {
				continue
			}
			a, aok := resolve(values, g.X)
			b, bok := resolve(values, g.Y)
			if !aok || !bok {
				continue
			}
			result, _ := g.Eval(a, b)
			values[n] = result
			progress = true
		}
		if !progress {
			break
		}
	}
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if g.Kind == gate.Add || g.Kind == gate.Prod {
			if _, done := values[n]; !done {
				return gpacerr.NewPropagationError(n)
			}
		}
	}
	return nil
}

func resolve(values map[gate.Name]float64, name gate.Name) (float64, bool) {
	v, ok := values[name]
	return v, ok
}

// Observer is called with (t, y) at every RK4 step boundary, including
// the initial point a, where y is the state vector in c.IntGates order
// (spec §4.F "observer mode"). Simulate's observer turns each y into the
// output value with OutputValue.
type Observer func(t float64, y []float64)

// RK4 integrates field from a to b with fixed step size |dt| using the
// classical 4th-order Runge-Kutta method, starting from y0. b may be
// less than a, in which case RK4 steps backward (dt's sign is ignored;
// direction is taken from b-a). observe, if non-nil, is invoked at
// every step boundary. Returns the final state.
func RK4(field Field, y0 []float64, a, b, dt float64, observe Observer) ([]float64, error) {
	n := len(y0)
	y := append([]float64(nil), y0...)
	t := a

	dt = math.Abs(dt)
	forward := b >= a
	if forward && dt == 0 {
		dt = 1e-3
	}

	if observe != nil {
		observe(t, y)
	}

	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	tmp := make([]float64, n)

	reached := func(t float64) bool {
		if forward {
			return t < b
		}
		return t > b
	}

	for reached(t) {
		step := dt
		if forward && t+step > b {
			step = b - t
		} else if !forward && t-step < b {
			step = t - b
		}
		if !forward {
			step = -step
		}
		// Grid-boundary snapping: when b-a is a whole multiple of dt,
		// rounding accumulated in t can leave a final residual step of
		// magnitude near the float64 epsilon rather than exactly zero;
		// such a step is skipped.
		if floats.EqualWithinAbs(step, 0, 1e-12) {
			break
		}

		f1, err := field(t, y)
		if err != nil {
			return nil, err
		}
		copy(k1, f1)

		for i := 0; i < n; i++ {
			tmp[i] = y[i] + step/2*k1[i]
		}
		f2, err := field(t+step/2, tmp)
		if err != nil {
			return nil, err
		}
		copy(k2, f2)

		for i := 0; i < n; i++ {
			tmp[i] = y[i] + step/2*k2[i]
		}
		f3, err := field(t+step/2, tmp)
		if err != nil {
			return nil, err
		}
		copy(k3, f3)

		for i := 0; i < n; i++ {
			tmp[i] = y[i] + step*k3[i]
		}
		f4, err := field(t+step, tmp)
		if err != nil {
			return nil, err
		}
		copy(k4, f4)

		for i := 0; i < n; i++ {
			y[i] += step / 6 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
		}
		t += step

		if observe != nil {
			observe(t, y)
		}
	}
	return y, nil
}

// OutputValue extracts the designated output's value from a state
// vector y (in c.IntGates order) at time t, by running one propagation
// pass. c must be finalized.
func OutputValue(c *circuit.Circuit, t float64, y []float64) (float64, error) {
	if !c.Finalized {
		return 0, gpacerr.NewCircuitError("ode.OutputValue", "circuit must be finalized")
	}
	values := make(map[gate.Name]float64, len(c.Gates)+1)
	for n, g := range c.Gates {
		if g.Kind == gate.Constant {
			values[n] = g.Value
		}
	}
	for i, name := range c.IntGates {
		values[name] = y[i]
	}
	values[gate.T] = t
	if err := propagate(c, values); err != nil {
		return 0, err
	}
	if c.Output == gate.T {
		return t, nil
	}
	v, ok := values[c.Output]
	if !ok {
		return 0, gpacerr.NewPropagationError(c.Output)
	}
	return v, nil
}

// Simulate integrates a finalized circuit's Int gates from a to b with
// step dt and returns the output value's time series as parallel slices
// of (t, value). This is the convenience entry point used by cmd/gpac.
func Simulate(c *circuit.Circuit, a, b, dt float64) (times []float64, outputs []float64, err error) {
	if !c.Finalized {
		return nil, nil, gpacerr.NewCircuitError("ode.Simulate", "refusing to simulate a non-finalized circuit")
	}
	field, err := VectorField(c)
	if err != nil {
		return nil, nil, err
	}
	y0 := make([]float64, len(c.IntGates))
	for i, name := range c.IntGates {
		y0[i] = c.InitValues[name]
	}

	observe := func(t float64, y []float64) {
		times = append(times, t)
		out, oerr := OutputValue(c, t, y)
		if oerr != nil {
			out = 0
		}
		outputs = append(outputs, out)
	}

	_, err = RK4(field, y0, a, b, dt, observe)
	if err != nil {
		return nil, nil, err
	}
	return times, outputs, nil
}
