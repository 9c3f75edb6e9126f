// Package circuit implements the GPAC circuit container (spec §4.B): a
// mapping from gate name to gate, a designated output, per-Int initial
// values, and a fresh-name allocator. It is the owner of every Gate it
// holds — gates never outlive their Circuit and are cloned whenever a
// circuit is copied (DESIGN NOTES §9).
package circuit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
)

// Circuit is a named, mutable collection of gates with one designated
// output. See spec §3 for the full invariant list.
type Circuit struct {
	Name               string
	Gates              map[gate.Name]gate.Gate
	Output             gate.Name
	InitValues         map[gate.Name]float64
	ValidationOnInsert bool
	Block              bool
	Finalized          bool
	IntGates           []gate.Name

	fresh  int
	logger *logrus.Logger
}

// New creates an empty circuit with validation-on-insert enabled.
func New(name string) *Circuit {
	return &Circuit{
		Name:               name,
		Gates:              make(map[gate.Name]gate.Gate),
		InitValues:         make(map[gate.Name]float64),
		ValidationOnInsert: true,
		logger:             discardLogger(),
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(logrusDiscard{})
	return l
}

type logrusDiscard struct{}

func (logrusDiscard) Write(p []byte) (int, error) { return len(p), nil }

// SetLogger installs the logger used for non-fatal warnings (spec §7:
// gate-name overwrite, etc). Passing nil restores the discard logger.
func (c *Circuit) SetLogger(l *logrus.Logger) {
	if l == nil {
		c.logger = discardLogger()
		return
	}
	c.logger = l
}

// Clone returns a deep, independent copy of c: a new Gates map, a new
// InitValues map, and the same fresh-name counter (so names minted from
// the clone never collide with names already present in the original).
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{
		Name:               c.Name,
		Gates:              make(map[gate.Name]gate.Gate, len(c.Gates)),
		Output:             c.Output,
		InitValues:         make(map[gate.Name]float64, len(c.InitValues)),
		ValidationOnInsert: c.ValidationOnInsert,
		Block:              c.Block,
		Finalized:          c.Finalized,
		fresh:              c.fresh,
		logger:             c.logger,
	}
	for k, v := range c.Gates {
		out.Gates[k] = v
	}
	for k, v := range c.InitValues {
		out.InitValues[k] = v
	}
	if c.Finalized {
		out.IntGates = append([]gate.Name(nil), c.IntGates...)
	}
	return out
}

// fresh name generation ------------------------------------------------

// FreshName mints a new, unused gate name of the form "_<k>" and
// advances the circuit's monotone counter.
func (c *Circuit) FreshName() gate.Name {
	for {
		c.fresh++
		name := "_" + strconv.Itoa(c.fresh)
		if _, exists := c.Gates[name]; !exists {
			return name
		}
	}
}

// bumpFreshCounter advances the fresh-name counter to at least k if name
// has the form "_<k>" for an integer k (spec §3 invariant 6).
func (c *Circuit) bumpFreshCounter(name gate.Name) {
	if !strings.HasPrefix(name, "_") {
		return
	}
	if k, err := strconv.Atoi(name[1:]); err == nil && k > c.fresh {
		c.fresh = k
	}
}

// validateName applies the §4.B insertion rules: empty, leading
// underscore (unless generated), and the literal "t" are rejected when
// ValidationOnInsert is set and generated is false. resolveName treats
// names of the "_<k>" form FreshName mints as generated.
func (c *Circuit) validateName(name gate.Name, generated bool) error {
	if !c.ValidationOnInsert || generated {
		return nil
	}
	if name == "" {
		return gpacerr.NewCircuitError("Circuit.insert", "gate name must not be empty")
	}
	if name == gate.T {
		return gpacerr.NewCircuitError("Circuit.insert", `gate name "t" is reserved for the independent variable`)
	}
	if strings.HasPrefix(name, "_") {
		return gpacerr.NewCircuitError("Circuit.insert", "leading underscore is reserved for generated names")
	}
	return nil
}

// insert installs g under name, warning and overwriting on collision,
// and marks the circuit unfinalized (invariant 5).
func (c *Circuit) insert(name gate.Name, g gate.Gate) gate.Name {
	if _, exists := c.Gates[name]; exists {
		c.logger.WithFields(logrus.Fields{"circuit": c.Name, "gate": name}).
			Warn("overwriting existing gate")
	}
	c.Gates[name] = g
	c.bumpFreshCounter(name)
	c.Finalized = false
	return name
}

func (c *Circuit) resolveName(name gate.Name) (gate.Name, bool, error) {
	if name == "" {
		return c.FreshName(), true, nil
	}
	// A "_<k>" name is one FreshName minted (or one read back from a dump
	// of a circuit that used it), so it passes as generated.
	k, convErr := strconv.Atoi(strings.TrimPrefix(name, "_"))
	generated := strings.HasPrefix(name, "_") && convErr == nil && k > 0
	if err := c.validateName(name, generated); err != nil {
		return "", false, err
	}
	return name, generated, nil
}

// AddConst inserts a Constant gate. name == "" mints a fresh name.
func (c *Circuit) AddConst(name gate.Name, value float64) (gate.Name, error) {
	n, _, err := c.resolveName(name)
	if err != nil {
		return "", errors.Wrap(err, "Circuit.AddConst")
	}
	return c.insert(n, gate.NewConstant(value)), nil
}

// AddAdd inserts an Add gate. name == "" mints a fresh name.
func (c *Circuit) AddAdd(name gate.Name, x, y gate.Name) (gate.Name, error) {
	n, _, err := c.resolveName(name)
	if err != nil {
		return "", errors.Wrap(err, "Circuit.AddAdd")
	}
	if err := c.checkInputExists(x); err != nil {
		return "", errors.Wrap(err, "Circuit.AddAdd")
	}
	if err := c.checkInputExists(y); err != nil {
		return "", errors.Wrap(err, "Circuit.AddAdd")
	}
	return c.insert(n, gate.NewAdd(x, y)), nil
}

// AddProd inserts a Prod gate. name == "" mints a fresh name.
func (c *Circuit) AddProd(name gate.Name, x, y gate.Name) (gate.Name, error) {
	n, _, err := c.resolveName(name)
	if err != nil {
		return "", errors.Wrap(err, "Circuit.AddProd")
	}
	if err := c.checkInputExists(x); err != nil {
		return "", errors.Wrap(err, "Circuit.AddProd")
	}
	if err := c.checkInputExists(y); err != nil {
		return "", errors.Wrap(err, "Circuit.AddProd")
	}
	return c.insert(n, gate.NewProd(x, y)), nil
}

// AddInt inserts an Int gate g' = x * y' with initial value v0. The
// second input y must not be a Constant gate (spec invariant 2) when
// validation is on. Either input may equal the gate's own assigned
// name (explicit self-reference), which is how an Int gate legitimately
// closes a cycle (e.g. Exp: z' = z, z(0) = 1) — by the time the name is
// resolved, the key is about to exist in Gates.
func (c *Circuit) AddInt(name gate.Name, x, y gate.Name, v0 float64) (gate.Name, error) {
	n, _, err := c.resolveName(name)
	if err != nil {
		return "", errors.Wrap(err, "Circuit.AddInt")
	}
	if x != n {
		if err := c.checkInputExists(x); err != nil {
			return "", errors.Wrap(err, "Circuit.AddInt")
		}
	}
	if y != n {
		if err := c.checkInputExists(y); err != nil {
			return "", errors.Wrap(err, "Circuit.AddInt")
		}
	}
	if c.ValidationOnInsert && y != gate.T {
		if g, exists := c.Gates[y]; exists && g.Kind == gate.Constant {
			return "", gpacerr.NewGateError("Circuit.AddInt", n, "Int gate's differential variable cannot be a Constant gate")
		}
	}
	assigned := c.insert(n, gate.NewInt(x, y))
	c.InitValues[assigned] = v0
	return assigned, nil
}

func (c *Circuit) checkInputExists(name gate.Name) error {
	if name == gate.T {
		return nil
	}
	if _, exists := c.Gates[name]; !exists {
		// A "_<k>" name may be a FreshName reserved for a gate inserted
		// later (mutually referencing Int gates); Validate reports it if
		// that gate never appears.
		if k, err := strconv.Atoi(strings.TrimPrefix(name, "_")); err == nil && k > 0 && strings.HasPrefix(name, "_") {
			return nil
		}
		return gpacerr.NewGateError("Circuit.insert", name, "referenced gate does not exist")
	}
	return nil
}

// RenameGate moves the gate (and any init value) from old to new,
// updating Output if it pointed at old. It does not rewrite consumers'
// inputs — call RenameInputs separately for that.
func (c *Circuit) RenameGate(old, new gate.Name) error {
	g, exists := c.Gates[old]
	if !exists {
		return gpacerr.NewGateError("Circuit.RenameGate", old, "gate does not exist")
	}
	if _, collide := c.Gates[new]; collide {
		c.logger.WithFields(logrus.Fields{"circuit": c.Name, "gate": new}).
			Warn("overwriting existing gate")
	}
	delete(c.Gates, old)
	c.Gates[new] = g
	if v, ok := c.InitValues[old]; ok {
		delete(c.InitValues, old)
		c.InitValues[new] = v
	}
	if c.Output == old {
		c.Output = new
	}
	c.bumpFreshCounter(new)
	c.Finalized = false
	return nil
}

// RenameInputs rewrites every Binary gate's X/Y field equal to old to
// new. Does not touch Output (use RenameGate/SetOutput for that).
func (c *Circuit) RenameInputs(old, new gate.Name) {
	for name, g := range c.Gates {
		if !g.IsBinary() {
			continue
		}
		changed := false
		if g.X == old {
			g.X = new
			changed = true
		}
		if g.Y == old {
			g.Y = new
			changed = true
		}
		if changed {
			c.Gates[name] = g
			c.Finalized = false
		}
	}
}

// EraseGate removes a gate and any associated init value.
func (c *Circuit) EraseGate(name gate.Name) {
	delete(c.Gates, name)
	delete(c.InitValues, name)
	c.Finalized = false
}

// SetOutput designates the circuit's output gate. name must be "t" or a
// key of Gates; SetOutput does not itself validate this (Validate does),
// mirroring the teacher's lazy-validation style.
func (c *Circuit) SetOutput(name gate.Name) {
	c.Output = name
	c.Finalized = false
}

// SetInitValue sets the initial value of an Int gate. Returns an error,
// without mutating anything, if name does not name an Int gate.
func (c *Circuit) SetInitValue(name gate.Name, v0 float64) error {
	g, exists := c.Gates[name]
	if !exists || g.Kind != gate.Int {
		return gpacerr.NewGateError("Circuit.SetInitValue", name, "not an Int gate")
	}
	c.InitValues[name] = v0
	c.Finalized = false
	return nil
}

// ImportValues merges init values for gates present in c, skipping
// entries whose name is not a currently-present Int gate.
func (c *Circuit) ImportValues(values map[gate.Name]float64) {
	for name, v := range values {
		if g, exists := c.Gates[name]; exists && g.Kind == gate.Int {
			c.InitValues[name] = v
			c.Finalized = false
		}
	}
}

// SortedNames returns all gate names in lexicographic order, the
// deterministic iteration order the spec requires (§5).
func (c *Circuit) SortedNames() []gate.Name {
	names := make([]gate.Name, 0, len(c.Gates))
	for n := range c.Gates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IntGateNames returns, in lexicographic order, the names of every Int
// gate currently in the circuit (regardless of finalization).
func (c *Circuit) IntGateNames() []gate.Name {
	var names []gate.Name
	for _, n := range c.SortedNames() {
		if c.Gates[n].Kind == gate.Int {
			names = append(names, n)
		}
	}
	return names
}

// Reachable computes the set of gate names reachable from start by
// following input edges ("t" is always considered reachable but is not
// a key of the result since it is not a gate).
func (c *Circuit) Reachable(start gate.Name) map[gate.Name]bool {
	seen := make(map[gate.Name]bool)
	var visit func(gate.Name)
	visit = func(n gate.Name) {
		if n == gate.T || seen[n] {
			return
		}
		g, exists := c.Gates[n]
		if !exists {
			return
		}
		seen[n] = true
		if g.IsBinary() {
			visit(g.X)
			visit(g.Y)
		}
	}
	visit(start)
	return seen
}

// String renders a human-readable dump of the circuit, grounded on the
// teacher's Circuit.String format (name header, gate-by-gate listing).
func (c *Circuit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Circuit %s:\n", c.Name)
	for _, n := range c.SortedNames() {
		g := c.Gates[n]
		if g.Kind == gate.Int {
			fmt.Fprintf(&b, "  %s: %s | %g\n", n, g.String(), c.InitValues[n])
		} else {
			fmt.Fprintf(&b, "  %s: %s\n", n, g.String())
		}
	}
	fmt.Fprintf(&b, "  output: %s\n", c.Output)
	return b.String()
}
