package filter

import (
	"strconv"
	"strings"
)

// Eval evaluates f against metadata and reports whether the record matches.
// A nil Filter, or a Filter with a nil Root, matches every record (§9
// null-safety contract, documented on Filter).
func Eval(f *Filter, metadata map[string]string) bool {
	if f == nil || f.Root == nil {
		return true
	}
	return evalNode(f.Root, metadata)
}

func evalNode(n Node, metadata map[string]string) bool {
	switch v := n.(type) {
	case *Comparison:
		return evalComparison(v, metadata)
	case *And:
		return evalNode(v.Left, metadata) && evalNode(v.Right, metadata)
	case *Or:
		return evalNode(v.Left, metadata) || evalNode(v.Right, metadata)
	case *Not:
		return !evalNode(v.Child, metadata)
	default:
		return false
	}
}

// evalComparison applies a single (field, op, literal) comparison. A
// missing key always evaluates to false, regardless of operator — negated
// by the enclosing Not if present, per §4.3.
func evalComparison(c *Comparison, metadata map[string]string) bool {
	actual, ok := metadata[c.Field]
	if !ok {
		return false
	}

	switch c.Op {
	case OpEQ:
		return compareEqual(actual, c.Value)
	case OpNE:
		return !compareEqual(actual, c.Value)
	case OpLT, OpLE, OpGT, OpGE:
		return compareNumeric(c.Op, actual, c.Value)
	case OpContains:
		return strings.Contains(actual, c.Value.Str)
	case OpPrefix:
		return strings.HasPrefix(actual, c.Value.Str)
	case OpSuffix:
		return strings.HasSuffix(actual, c.Value.Str)
	case OpIn:
		for _, lit := range c.Value.List {
			if compareEqual(actual, lit) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareEqual(actual string, lit Literal) bool {
	if lit.IsNumber {
		av, err := strconv.ParseFloat(actual, 64)
		if err != nil {
			return false
		}
		return av == lit.Num
	}
	return actual == lit.Str
}

// compareNumeric parses both sides as float64; if either side fails to
// parse, the comparison is false (§4.3: "numeric comparisons failing to
// parse evaluate to false, never an error").
func compareNumeric(op Op, actual string, lit Literal) bool {
	av, err := strconv.ParseFloat(actual, 64)
	if err != nil {
		return false
	}
	var bv float64
	if lit.IsNumber {
		bv = lit.Num
	} else {
		bv, err = strconv.ParseFloat(lit.Str, 64)
		if err != nil {
			return false
		}
	}

	switch op {
	case OpLT:
		return av < bv
	case OpLE:
		return av <= bv
	case OpGT:
		return av > bv
	case OpGE:
		return av >= bv
	default:
		return false
	}
}
