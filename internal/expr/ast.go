// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expr compiles query specifications into a backend-agnostic
// predicate tree and lowers it to executable matchers. The tree keeps
// the boolean structure explicit so a different backend (a database
// query, a columnar engine) could lower the same nodes to its own
// execution form.
package expr

// Node is one node of the predicate tree.
type Node interface {
	node()
}

// Match is the leaf predicate: "this pattern occurs in at least one of
// the configured search columns". Group records where the pattern came
// from for error reporting and per-group results.
type Match struct {
	Group   string
	Pattern string
}

// Or is true when any operand is true.
type Or struct {
	Operands []Node
}

// And is true when every operand is true.
type And struct {
	Operands []Node
}

// Not negates its operand.
type Not struct {
	Operand Node
}

func (Match) node() {}
func (Or) node()    {}
func (And) node()   {}
func (Not) node()   {}

// Eval evaluates the tree given an oracle for the leaf predicates.
// Empty Or evaluates false and empty And true, so an absent
// disqualifier list never vetoes anything.
func Eval(n Node, leaf func(Match) bool) bool {
	switch v := n.(type) {
	case Match:
		return leaf(v)
	case Or:
		for _, op := range v.Operands {
			if Eval(op, leaf) {
				return true
			}
		}
		return false
	case And:
		for _, op := range v.Operands {
			if !Eval(op, leaf) {
				return false
			}
		}
		return true
	case Not:
		return !Eval(v.Operand, leaf)
	default:
		return false
	}
}
