package filter

// Op identifies a comparison operator recognized by the filter DSL
// (§4.3 grammar). GigaVector recognizes all four of CONTAINS, PREFIX,
// SUFFIX, IN per spec.md's recommendation on the open question.
type Op int

const (
	OpEQ Op = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpContains
	OpPrefix
	OpSuffix
	OpIn
)

// Literal is a parsed right-hand-side value: either a string or a number,
// and for IN, a list of either.
type Literal struct {
	IsNumber bool
	Str      string
	Num      float64
	List     []Literal // non-nil only for IN
}

// Node is a filter AST node. Leaf nodes are Comparison; interior nodes
// are And, Or, Not. The tree and its interned literals are owned
// exclusively by the Filter that parsed them (§3, §9).
type Node interface {
	node()
}

// Comparison is a leaf node: (field, op, literal).
type Comparison struct {
	Field string
	Op    Op
	Value Literal
}

func (*Comparison) node() {}

// And is the conjunction of Left and Right, short-circuiting on Left=false.
type And struct{ Left, Right Node }

func (*And) node() {}

// Or is the disjunction of Left and Right, short-circuiting on Left=true.
type Or struct{ Left, Right Node }

func (*Or) node() {}

// Not negates Child.
type Not struct{ Child Node }

func (*Not) node() {}

// Filter wraps a parsed AST root. The zero value (Root == nil) matches
// every record, so a nil *Filter is safe to evaluate against (§9
// null-safety contract).
type Filter struct {
	Root Node
}
