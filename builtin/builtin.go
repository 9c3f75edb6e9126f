// Package builtin provides the fixed GPAC circuit library of spec
// §4.C: Identity, Constant, Exp, the trigonometric/hyperbolic family,
// Sqrt, Inverse, Exp2, PowerPower2, Polynomial, L2, Round, Mod10,
// Upsilon, Abs, Sgn, Ip1, Lxh, Select, and Max. Every builtin sets
// Block so its name survives a circuit.Clone (spec §3).
package builtin

import (
	"math"

	"github.com/mvance/gpac/algebra"
	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/simplify"
)

func block(name string) *circuit.Circuit {
	c := circuit.New(name)
	c.Block = true
	return c
}

// mustFinalize normalizes and validates c, panicking on failure. Every
// builtin below is a fixed, hand-verified construction, so a Finalize
// failure here means the builtin itself is wrong, not its caller's
// input — the same contract algebra.mustField relies on.
func mustFinalize(c *circuit.Circuit) *circuit.Circuit {
	if err := simplify.Finalize(c, false); err != nil {
		panic(err)
	}
	return c
}

func must(c *circuit.Circuit, err error) *circuit.Circuit {
	if err != nil {
		panic(err)
	}
	return c
}

// Identity returns the circuit whose output is t itself.
func Identity() *circuit.Circuit {
	c := block("Identity")
	c.SetOutput(gate.T)
	return c
}

// Constant returns the circuit whose output is the fixed value v.
func Constant(v float64) *circuit.Circuit {
	c := block("Constant")
	n, _ := c.AddConst("", v)
	c.SetOutput(n)
	return c
}

func scaledIdentity(k float64) *circuit.Circuit {
	return must(algebra.MulScalar(Identity(), k))
}

// Exp returns the circuit computing e^t: z' = z, z(0) = 1.
func Exp() *circuit.Circuit {
	c := block("Exp")
	name := c.FreshName()
	z, _ := c.AddInt(name, name, gate.T, 1)
	c.SetOutput(z)
	return c
}

// sinCos builds the mutually-defined pair sin' = cos, cos' = -sin,
// sin(0) = 0, cos(0) = 1, as two Int gates referencing each other's
// name — a legitimate 2-cycle through Int gates (spec §3 invariant 1:
// names, not pointers, so forward references across Int gates work).
func sinCos() (sin, cos gate.Name, c *circuit.Circuit) {
	c = circuit.New("SinCos")
	sinName := c.FreshName()
	cosName := c.FreshName()
	negOne, _ := c.AddConst("", -1)
	negSin, _ := c.AddProd("", sinName, negOne)
	sin, _ = c.AddInt(sinName, cosName, gate.T, 0)
	cos, _ = c.AddInt(cosName, negSin, gate.T, 1)
	return sin, cos, c
}

// Sin returns the circuit computing sin(t).
func Sin() *circuit.Circuit {
	sin, _, c := sinCos()
	c.Name, c.Block = "Sin", true
	c.SetOutput(sin)
	return c
}

// Cos returns the circuit computing cos(t).
func Cos() *circuit.Circuit {
	_, cos, c := sinCos()
	c.Name, c.Block = "Cos", true
	c.SetOutput(cos)
	return c
}

// Tan returns sin(t)/cos(t) via Divide.
func Tan() *circuit.Circuit {
	c := must(algebra.Divide(Sin(), mustFinalize(Cos())))
	c.Name, c.Block = "Tan", true
	return c
}

// Arctan returns atan(t) via the auxiliary pair z = 1/(1+t^2),
// z' = -2t*z^2 (z(0) = 1), y' = z (y(0) = 0).
func Arctan() *circuit.Circuit {
	c := block("Arctan")
	zName := c.FreshName()
	two, _ := c.AddConst("", 2)
	negOne, _ := c.AddConst("", -1)
	twoT, _ := c.AddProd("", two, gate.T)
	negTwoT, _ := c.AddProd("", twoT, negOne)
	zSq, _ := c.AddProd("", zName, zName)
	integrandZ, _ := c.AddProd("", negTwoT, zSq)
	z, _ := c.AddInt(zName, integrandZ, gate.T, 1)
	y, _ := c.AddInt("", z, gate.T, 0)
	c.SetOutput(y)
	return c
}

// Tanh returns tanh(t) via y' = 1 - y^2, y(0) = 0.
func Tanh() *circuit.Circuit {
	c := block("Tanh")
	name := c.FreshName()
	one, _ := c.AddConst("", 1)
	negOne, _ := c.AddConst("", -1)
	ySq, _ := c.AddProd("", name, name)
	negYSq, _ := c.AddProd("", ySq, negOne)
	integrand, _ := c.AddAdd("", one, negYSq)
	y, _ := c.AddInt(name, integrand, gate.T, 0)
	c.SetOutput(y)
	return c
}

// sqrtEpsilon is the strictly-positive start value Sqrt and Inverse
// begin integrating from, since both are undefined at t = 0.
const sqrtEpsilon = 1e-3

// Sqrt returns a smooth sqrt(t) for t > sqrtEpsilon, via the auxiliary
// pair z = 1/(2y), z' = -2*z^3 (z(0) = 1/(2*sqrtEpsilon)), y' = z
// (y(0) = sqrtEpsilon).
func Sqrt() *circuit.Circuit {
	c := block("Sqrt")
	zName := c.FreshName()
	negTwo, _ := c.AddConst("", -2)
	zSq, _ := c.AddProd("", zName, zName)
	zCubed, _ := c.AddProd("", zSq, zName)
	integrandZ, _ := c.AddProd("", negTwo, zCubed)
	z, _ := c.AddInt(zName, integrandZ, gate.T, 1/(2*sqrtEpsilon))
	y, _ := c.AddInt("", z, gate.T, sqrtEpsilon)
	c.SetOutput(y)
	return c
}

// Inverse returns a smooth 1/t for t > sqrtEpsilon, via z' = -z^2,
// z(0) = 1/sqrtEpsilon.
func Inverse() *circuit.Circuit {
	c := block("Inverse")
	name := c.FreshName()
	negOne, _ := c.AddConst("", -1)
	zSq, _ := c.AddProd("", name, name)
	negZSq, _ := c.AddProd("", zSq, negOne)
	z, _ := c.AddInt(name, negZSq, gate.T, 1/sqrtEpsilon)
	c.SetOutput(z)
	return c
}

// ln2 is used by Exp2 to rewrite 2^t as e^(t*ln2).
const ln2 = 0.6931471805599453

// Exp2 returns the circuit computing 2^t.
func Exp2() *circuit.Circuit {
	c := must(algebra.Compose(mustFinalize(Exp()), mustFinalize(scaledIdentity(ln2))))
	c.Name, c.Block = "Exp2", true
	return c
}

// PowerPower2 returns the circuit computing t^(2^n) by n-fold repeated
// squaring. PowerPower2(0) is Identity (t^(2^0) = t).
func PowerPower2(n int) *circuit.Circuit {
	if n <= 0 {
		c := Identity()
		c.Name = "PowerPower2"
		return c
	}
	square := func() *circuit.Circuit {
		c := block("square")
		sq, _ := c.AddProd("", gate.T, gate.T)
		c.SetOutput(sq)
		return c
	}()

	result := mustFinalize(square)
	for i := 1; i < n; i++ {
		result = mustFinalize(result)
		result = must(algebra.Compose(mustFinalize(square), result))
	}
	result.Name, result.Block = "PowerPower2", true
	return result
}

// Polynomial returns the circuit evaluating the polynomial with the
// given coefficients (coeffs[i] is the coefficient of t^i) via
// Horner's method.
func Polynomial(coeffs []float64) *circuit.Circuit {
	c := block("Polynomial")
	if len(coeffs) == 0 {
		zero, _ := c.AddConst("", 0)
		c.SetOutput(zero)
		return c
	}
	acc, _ := c.AddConst("", coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		prod, _ := c.AddProd("", acc, gate.T)
		coeff, _ := c.AddConst("", coeffs[i])
		acc, _ = c.AddAdd("", prod, coeff)
	}
	c.SetOutput(acc)
	return c
}

// L2 returns the logistic switch y' = alpha*y*(1-y), y(0) = 0.5, a
// smooth 0->1 transition of steepness alpha.
func L2(alpha float64) *circuit.Circuit {
	c := block("L2")
	name := c.FreshName()
	one, _ := c.AddConst("", 1)
	negOne, _ := c.AddConst("", -1)
	negY, _ := c.AddProd("", name, negOne)
	oneMinusY, _ := c.AddAdd("", one, negY)
	yTimesOneMinusY, _ := c.AddProd("", name, oneMinusY)
	alphaConst, _ := c.AddConst("", alpha)
	integrand, _ := c.AddProd("", alphaConst, yTimesOneMinusY)
	y, _ := c.AddInt(name, integrand, gate.T, 0.5)
	c.SetOutput(y)
	return c
}

// roundHarmonics is the fixed number of Fourier terms used by Round's
// sawtooth correction (see Round's doc comment).
const roundHarmonics = 5

// Round returns a smooth approximation of the nearest-integer function,
// built as t plus a truncated Fourier sawtooth correction:
// t + Σ_{k=1..5} (-1)^k sin(2*pi*k*t)/(pi*k). The classical (infinite) series
// converges to the centered sawtooth wave that pulls t toward its
// nearest integer; five harmonics is enough ripple suppression for the
// step sizes this engine simulates at.
func Round() *circuit.Circuit {
	out := Identity()
	for k := 1; k <= roundHarmonics; k++ {
		omega := 2 * math.Pi * float64(k)
		harmonic := must(algebra.Compose(mustFinalize(Sin()), mustFinalize(scaledIdentity(omega))))
		weight := math.Pow(-1, float64(k)) / (math.Pi * float64(k))
		scaled := must(algebra.MulScalar(harmonic, weight))
		out = must(algebra.Sum(out, scaled))
	}
	out.Name, out.Block = "Round", true
	return out
}

// Mod10 coefficients: the closed-form Fourier coefficients of the
// period-10 sawtooth t mod 10 (a0 = 5, b_k = -10/(pi*k), every cosine
// coefficient 0), truncated after four harmonics. They are not the
// solution of an interpolation system, so the series does not pass
// exactly through any set of sample points.
const (
	mod10A0          = 5.0
	mod10A1, mod10B1 = 0.0, -3.1830989
	mod10A2, mod10B2 = 0.0, -1.5915494
	mod10A3, mod10B3 = 0.0, -1.0610329
	mod10A4, mod10B4 = 0.0, -0.7957747
	mod10A5          = 0.0
)

// Mod10 returns the ten-coefficient harmonic approximation
// a0 + Sum_{k=1..4}(a_k*cos(k*w*t) + b_k*sin(k*w*t)) + a5*cos(5*w*t),
// w = 2*pi/10, described in SPEC_FULL.md's concrete-conventions section.
func Mod10() *circuit.Circuit {
	out := Constant(mod10A0)
	harmonics := []struct {
		k    int
		a, b float64
	}{
		{1, mod10A1, mod10B1},
		{2, mod10A2, mod10B2},
		{3, mod10A3, mod10B3},
		{4, mod10A4, mod10B4},
	}
	for _, h := range harmonics {
		if h.a != 0 {
			cosTerm := must(algebra.Compose(mustFinalize(Cos()), mustFinalize(scaledIdentity(2*math.Pi*float64(h.k)/10))))
			out = must(algebra.Sum(out, must(algebra.MulScalar(cosTerm, h.a))))
		}
		if h.b != 0 {
			sinTerm := must(algebra.Compose(mustFinalize(Sin()), mustFinalize(scaledIdentity(2*math.Pi*float64(h.k)/10))))
			out = must(algebra.Sum(out, must(algebra.MulScalar(sinTerm, h.b))))
		}
	}
	if mod10A5 != 0 {
		cos5 := must(algebra.Compose(mustFinalize(Cos()), mustFinalize(scaledIdentity(2*math.Pi*5/10))))
		out = must(algebra.Sum(out, must(algebra.MulScalar(cos5, mod10A5))))
	}
	out.Name, out.Block = "Mod10", true
	return out
}

// Abs returns a smooth |t| via sqrt(t*t + delta*delta), shifted so
// Abs(delta)(0) = delta: the auxiliary pair z = 1/w, z' = -t*z^3,
// w' = t*z, w(0) = delta, z(0) = 1/delta.
func Abs(delta float64) *circuit.Circuit {
	c := block("Abs")
	negOne, _ := c.AddConst("", -1)
	zName := c.FreshName()
	negT, _ := c.AddProd("", gate.T, negOne)
	zSq, _ := c.AddProd("", zName, zName)
	zCubed, _ := c.AddProd("", zSq, zName)
	integrandZ, _ := c.AddProd("", negT, zCubed)
	z, _ := c.AddInt(zName, integrandZ, gate.T, 1/delta)
	wDeriv, _ := c.AddProd("", gate.T, z)
	w, _ := c.AddInt("", wDeriv, gate.T, delta)
	c.SetOutput(w)
	return c
}

// Sgn returns tanh(mu*t), a steepness-mu smoothed sign function.
func Sgn(mu float64) *circuit.Circuit {
	c := must(algebra.Compose(mustFinalize(Tanh()), mustFinalize(scaledIdentity(mu))))
	c.Name, c.Block = "Sgn", true
	return c
}

// Ip1 returns a smoothed unit step (Sgn(mu) + 1) / 2.
func Ip1(mu float64) *circuit.Circuit {
	c := must(algebra.AddScalar(Sgn(mu), 1))
	c = must(algebra.MulScalar(c, 0.5))
	c.Name, c.Block = "Ip1", true
	return c
}

// lxhAbsDelta is the smoothing radius Lxh's internal Abs uses.
const lxhAbsDelta = 1e-3

// Lxh returns a smoothed max(0, t): (t + Abs(delta)(t)) / 2.
func Lxh() *circuit.Circuit {
	c := must(algebra.Sum(Identity(), Abs(lxhAbsDelta)))
	c = must(algebra.MulScalar(c, 0.5))
	c.Name, c.Block = "Lxh", true
	return c
}

// maxAbsDelta is the smoothing radius Max's internal Abs uses.
const maxAbsDelta = 1e-3

// Max returns a smoothed max(a, b): (a + b + Abs(delta)(a - b)) / 2.
func Max(a, b *circuit.Circuit) (*circuit.Circuit, error) {
	diff, err := algebra.Difference(a, b)
	if err != nil {
		return nil, err
	}
	absDiff, err := algebra.Compose(mustFinalize(Abs(maxAbsDelta)), mustFinalize(diff))
	if err != nil {
		return nil, err
	}
	sum, err := algebra.Sum(a, b)
	if err != nil {
		return nil, err
	}
	sum, err = algebra.Sum(sum, absDiff)
	if err != nil {
		return nil, err
	}
	out, err := algebra.MulScalar(sum, 0.5)
	if err != nil {
		return nil, err
	}
	out.Name, out.Block = "Max", true
	return out, nil
}

// Select returns a smoothed select(cond, a, b, eps): a + Ip1(1/eps)(cond) * (b - a),
// tending to b when cond >> 0 and to a when cond << 0, eps controlling
// the transition steepness.
func Select(cond, a, b *circuit.Circuit, eps float64) (*circuit.Circuit, error) {
	indicator, err := algebra.Compose(mustFinalize(Ip1(1/eps)), mustFinalize(cond))
	if err != nil {
		return nil, err
	}
	diff, err := algebra.Difference(b, a)
	if err != nil {
		return nil, err
	}
	scaled, err := algebra.Product(indicator, diff)
	if err != nil {
		return nil, err
	}
	out, err := algebra.Sum(a, scaled)
	if err != nil {
		return nil, err
	}
	out.Name, out.Block = "Select", true
	return out, nil
}

// Upsilon returns a smoothed rectangular pulse of width w starting at
// t = 0: L2(k) - L2(k)∘(t - w), k = 50 steepness, w = 1 width.
func Upsilon() *circuit.Circuit {
	const k, w = 50.0, 1.0
	rising := L2(k)
	shiftedT := must(algebra.AddScalar(Identity(), -w))
	falling := must(algebra.Compose(mustFinalize(L2(k)), mustFinalize(shiftedT)))
	out := must(algebra.Difference(rising, falling))
	out.Name, out.Block = "Upsilon", true
	return out
}
