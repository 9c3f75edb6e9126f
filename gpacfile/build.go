package gpacfile

import (
	"github.com/mvance/gpac/algebra"
	"github.com/mvance/gpac/builtin"
	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
	"github.com/mvance/gpac/simplify"
)

// builtinRegistry maps the .gpac grammar's bare builtin names (spec
// §6: "Reserved: t, leading-underscore identifiers, and builtin
// circuit names") to zero-argument builtin constructors. Parameterized
// builtins (Constant(c), PowerPower2(n), Polynomial(coeffs), L2(alpha),
// Abs(delta), Sgn(mu), Ip1(mu)) have no literal-argument syntax in the
// file grammar and are only reachable through the Go API.
var builtinRegistry = map[string]func() *circuit.Circuit{
	"Identity": builtin.Identity,
	"Exp":      builtin.Exp,
	"Sin":      builtin.Sin,
	"Cos":      builtin.Cos,
	"Tan":      builtin.Tan,
	"Arctan":   builtin.Arctan,
	"Tanh":     builtin.Tanh,
	"Sqrt":     builtin.Sqrt,
	"Inverse":  builtin.Inverse,
	"Exp2":     builtin.Exp2,
	"Round":    builtin.Round,
	"Mod10":    builtin.Mod10,
	"Upsilon":  builtin.Upsilon,
	"Lxh":      builtin.Lxh,
}

// Build converts a parsed file into a name -> circuit table, in
// definition order, resolving bare identifiers against earlier
// definitions in the same file and then against builtinRegistry.
// Expression-form definitions come back finalized; gate-list
// definitions come back unfinalized.
func Build(f *file) (map[string]*circuit.Circuit, error) {
	built := make(map[string]*circuit.Circuit)

	gateListByName := make(map[string]gateListDef)
	for _, d := range f.gateLists {
		gateListByName[d.name] = d
	}
	exprByName := make(map[string]exprDef)
	for _, d := range f.exprs {
		exprByName[d.name] = d
	}

	for _, name := range f.order {
		if d, ok := gateListByName[name]; ok {
			c, err := buildGateList(d, built)
			if err != nil {
				return nil, err
			}
			built[name] = c
			continue
		}
		d := exprByName[name]
		c, err := evalExpr(d.body, built)
		if err != nil {
			return nil, err
		}
		c.Name = name
		built[name] = c
	}
	return built, nil
}

func resolveCircuit(ident string, built map[string]*circuit.Circuit) (*circuit.Circuit, error) {
	if c, ok := built[ident]; ok {
		return c.Clone(), nil
	}
	if ctor, ok := builtinRegistry[ident]; ok {
		return ctor(), nil
	}
	return nil, gpacerr.NewCircuitError("gpacfile.Build", "unknown circuit or builtin name \""+ident+"\"")
}

// buildGateList constructs a circuit from a flat gate-list definition
// (spec §6 form 1): each entry names a gate and a shallow spec whose
// <a>/<b> operands are either "t", a gate already defined earlier in
// this same list, or (for a bare-identifier spec) the name of a
// previously built circuit whose output is spliced in under the new
// gate's name. Spec §6 does not name an explicit output marker for
// this form, so (Open Question, resolved here) the circuit's output is
// the last gate listed — the natural reading of "a sequence of gate
// definitions" ending in the value the circuit computes.
func buildGateList(d gateListDef, built map[string]*circuit.Circuit) (*circuit.Circuit, error) {
	c := circuit.New(d.name)
	var output gate.Name

	resolveLocal := func(e *expr) (gate.Name, error) {
		if e.kind == exprValue {
			n, _ := c.AddConst("", e.value)
			return n, nil
		}
		if e.kind != exprIdent {
			return "", gpacerr.NewCircuitError("gpacfile.Build", "expected a gate name or number")
		}
		return e.ident, nil
	}

	for _, g := range d.gates {
		var assigned gate.Name
		var err error
		switch g.spec.kind {
		case exprValue:
			assigned, err = c.AddConst(g.name, g.spec.value)
		case exprBinary:
			var x, y gate.Name
			if x, err = resolveLocal(g.spec.x); err == nil {
				if y, err = resolveLocal(g.spec.y); err == nil {
					if g.spec.op == '+' {
						assigned, err = c.AddAdd(g.name, x, y)
					} else {
						assigned, err = c.AddProd(g.name, x, y)
					}
				}
			}
		case exprIntegral:
			var x, y gate.Name
			if x, err = resolveLocal(g.spec.x); err == nil {
				if y, err = resolveLocal(g.spec.y); err == nil {
					assigned, err = c.AddInt(g.name, x, y, g.spec.init)
				}
			}
		case exprIdent:
			var src *circuit.Circuit
			src, err = resolveCircuit(g.spec.ident, built)
			if err == nil {
				spliceInto(c, src)
				assigned = src.Output
				if assigned != g.name {
					err = c.RenameGate(assigned, g.name)
					assigned = g.name
				}
			}
		default:
			err = gpacerr.NewCircuitError("gpacfile.Build", "unsupported gate-list spec")
		}
		if err != nil {
			return nil, err
		}
		output = assigned
	}
	if output == "" {
		return nil, gpacerr.NewCircuitError("gpacfile.Build", "gate list for circuit \""+d.name+"\" is empty")
	}
	c.SetOutput(output)
	return c, nil
}

// spliceInto copies every gate (and init value) of src into dst,
// renaming any dst gate whose name collides with one in src first —
// the same splice discipline as algebra.merge, duplicated here because
// merge is unexported.
func spliceInto(dst, src *circuit.Circuit) {
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

func mustFinalize(c *circuit.Circuit) (*circuit.Circuit, error) {
	if err := simplify.Finalize(c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// evalExpr recursively builds a circuit from a parsed expression-form
// AST node (spec §6 form 2), resolving identifiers against built and
// then builtinRegistry. Every returned circuit is finalized, since
// algebra.Compose (the '@' operator) requires both operands finalized.
func evalExpr(e *expr, built map[string]*circuit.Circuit) (*circuit.Circuit, error) {
	switch e.kind {
	case exprValue:
		return mustFinalize(builtin.Constant(e.value))

	case exprIdent:
		c, err := resolveCircuit(e.ident, built)
		if err != nil {
			return nil, err
		}
		return mustFinalize(c)

	case exprIterate:
		inner, err := evalExpr(e.inner, built)
		if err != nil {
			return nil, err
		}
		out, err := algebra.Iterate(inner, e.n)
		if err != nil {
			return nil, err
		}
		return mustFinalize(out)

	case exprBinary:
		x, err := evalExpr(e.x, built)
		if err != nil {
			return nil, err
		}
		y, err := evalExpr(e.y, built)
		if err != nil {
			return nil, err
		}
		var out *circuit.Circuit
		switch e.op {
		case '+':
			out, err = algebra.Sum(x, y)
		case '-':
			out, err = algebra.Difference(x, y)
		case '*':
			out, err = algebra.Product(x, y)
		case '/':
			out, err = algebra.Divide(x, y)
		case '@':
			out, err = algebra.Compose(x, y)
		default:
			err = gpacerr.NewCircuitError("gpacfile.Build", "unknown binary operator")
		}
		if err != nil {
			return nil, err
		}
		return mustFinalize(out)

	case exprIntegral:
		x, err := evalExpr(e.x, built)
		if err != nil {
			return nil, err
		}
		y, err := evalExpr(e.y, built)
		if err != nil {
			return nil, err
		}
		out, err := algebra.Integrate(x, y, e.init)
		if err != nil {
			return nil, err
		}
		return mustFinalize(out)

	case exprMax:
		a, err := evalExpr(e.args[0], built)
		if err != nil {
			return nil, err
		}
		b, err := evalExpr(e.args[1], built)
		if err != nil {
			return nil, err
		}
		out, err := builtin.Max(a, b)
		if err != nil {
			return nil, err
		}
		return mustFinalize(out)

	case exprSelect:
		cond, err := evalExpr(e.args[0], built)
		if err != nil {
			return nil, err
		}
		a, err := evalExpr(e.args[1], built)
		if err != nil {
			return nil, err
		}
		b, err := evalExpr(e.args[2], built)
		if err != nil {
			return nil, err
		}
		if e.args[3].kind != exprValue {
			return nil, gpacerr.NewCircuitError("gpacfile.Build", "select(...)'s fourth argument must be a literal")
		}
		out, err := builtin.Select(cond, a, b, e.args[3].value)
		if err != nil {
			return nil, err
		}
		return mustFinalize(out)

	default:
		return nil, gpacerr.NewCircuitError("gpacfile.Build", "unknown expression node")
	}
}
