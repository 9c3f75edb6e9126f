package gpacfile

// exprKind tags the variant of an expr-form or gate-spec AST node.
type exprKind int

const (
	exprValue exprKind = iota
	exprIdent
	exprIterate // <ident>[<n>] or (<expr>)[<n>]
	exprBinary  // <expr> <op> <expr>, op in {+,-,*,/,@}
	exprIntegral
	exprMax
	exprSelect
)

// expr is the parsed AST of a single `.gpac` expression — the
// right-hand side of a `Circuit <name> = <expr>;` definition, a
// gate-list `<spec>`, or any of their sub-expressions.
type expr struct {
	kind  exprKind
	value float64   // exprValue
	ident string    // exprIdent
	op    byte      // exprBinary: '+','-','*','/','@'
	x, y  *expr     // exprBinary, exprIntegral (x=integrand, y=diff var)
	init  float64   // exprIntegral
	n     int       // exprIterate
	args  []*expr   // exprMax (2), exprSelect (4)
	inner *expr     // exprIterate
}

// gateListDef is a parsed `Circuit <name>: <gate>: <spec> ... ;` form:
// an ordered list of (name, spec) pairs, each spec either a gate
// expression or a bare identifier copying a previously built circuit's
// output.
type gateListDef struct {
	name  string
	gates []gateSpec
}

type gateSpec struct {
	name string
	spec *expr
}

// exprDef is a parsed `Circuit <name> = <expr>;` form.
type exprDef struct {
	name string
	body *expr
}

// file is everything parsed out of one .gpac source: definitions in
// source order, each either a gate-list or an expression form.
type file struct {
	gateLists []gateListDef
	exprs     []exprDef
	order     []string // definition names, in the order they appeared
}
