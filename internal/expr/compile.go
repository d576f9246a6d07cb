// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dovmed/dovmed/internal/query"
)

// PatternError reports a pattern that failed to compile under the RE2
// dialect, tagged with its originating concept group.
type PatternError struct {
	Group   string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("concept group %q: pattern %q: %v", e.Group, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Options controls predicate compilation.
type Options struct {
	// CaseInsensitive wraps every pattern in a case-insensitive flag
	// unless the pattern already sets its own inline flags.
	CaseInsensitive bool
}

// ColumnSource yields named text columns of one document row.
type ColumnSource interface {
	Column(name string) (string, bool)
}

// Program is a fully compiled query: the predicate tree plus the
// executable matcher for every leaf. The tree is built once per run
// and never mutated; evaluation is safe from concurrent goroutines
// because RE2 and the automaton are read-only after compilation.
type Program struct {
	// Primary is the OR across all concept-group predicates.
	Primary Node

	// Disqualifier is the OR across veto patterns, or nil when none
	// were configured.
	Disqualifier Node

	// Final is Primary AND NOT Disqualifier (or just Primary).
	Final Node

	// Groups holds one executable program per concept group, in
	// declaration order.
	Groups []*GroupProgram

	disqualifier *GroupProgram
	matchers     map[Match]matcher
}

// Compile translates a query spec and its disqualifiers into a
// Program. No searching happens here; pattern syntax errors surface
// as *PatternError.
func Compile(spec *query.Spec, disq query.Disqualifiers, opts Options) (*Program, error) {
	p := &Program{matchers: make(map[Match]matcher)}

	var groupNodes []Node
	for _, g := range spec.Groups {
		gp, node, err := p.compileGroup(g.Name, g.Alternatives, opts)
		if err != nil {
			return nil, err
		}
		p.Groups = append(p.Groups, gp)
		groupNodes = append(groupNodes, node)
	}
	p.Primary = Or{Operands: groupNodes}
	p.Final = p.Primary

	if len(disq) > 0 {
		alts := make([][]string, len(disq))
		for i, d := range disq {
			alts[i] = []string{d}
		}
		dp, node, err := p.compileGroup(query.ReservedKey, alts, opts)
		if err != nil {
			return nil, err
		}
		p.disqualifier = dp
		p.Disqualifier = node
		p.Final = And{Operands: []Node{p.Primary, Not{Operand: node}}}
	}

	return p, nil
}

// compileGroup builds the predicate subtree and executable program for
// one concept group: OR across alternative sets, OR across the
// patterns inside each set.
func (p *Program) compileGroup(name string, alts [][]string, opts Options) (*GroupProgram, Node, error) {
	gp := &GroupProgram{Name: name}
	var altNodes []Node
	var literals []string

	for _, alt := range alts {
		var leaves []Node
		for _, pattern := range alt {
			m := Match{Group: name, Pattern: pattern}
			leaves = append(leaves, m)

			if _, done := p.matchers[m]; !done {
				re, err := compilePattern(pattern, opts)
				if err != nil {
					return nil, nil, &PatternError{Group: name, Pattern: pattern, Err: err}
				}
				p.matchers[m] = regexMatcher{re: re}

				if isLiteral(pattern) && (!opts.CaseInsensitive || asciiOnly(pattern)) {
					literals = append(literals, pattern)
				} else {
					gp.regexes = append(gp.regexes, compiledPattern{pattern: pattern, re: re})
				}
			}
		}
		altNodes = append(altNodes, Or{Operands: leaves})
	}

	if len(literals) > 0 {
		gp.literals = buildAutomaton(literals, opts.CaseInsensitive)
		gp.litPats = literals
	}

	node := Or{Operands: altNodes}
	gp.Node = node
	return gp, node, nil
}

// compilePattern compiles one pattern under the RE2 dialect. The
// engine rejects lookaround and backreferences itself, which is
// exactly the contract: every accepted pattern matches in linear time.
func compilePattern(pattern string, opts Options) (*regexp.Regexp, error) {
	expr := pattern
	if opts.CaseInsensitive && !strings.HasPrefix(pattern, "(?") {
		expr = "(?i)" + pattern
	}
	return regexp.Compile(expr)
}

// EvalDoc evaluates a predicate subtree against one document row: a
// leaf holds when its pattern occurs in any of the given columns.
func (p *Program) EvalDoc(n Node, doc ColumnSource, cols []string) bool {
	return Eval(n, func(m Match) bool {
		mt, ok := p.matchers[m]
		if !ok {
			return false
		}
		for _, c := range cols {
			if text, found := doc.Column(c); found && mt.matches(text) {
				return true
			}
		}
		return false
	})
}

// Retain reports whether the document passes the final predicate
// (matches at least one concept group and no disqualifying term).
func (p *Program) Retain(doc ColumnSource, cols []string) bool {
	return p.EvalDoc(p.Final, doc, cols)
}

// Disqualified reports whether a disqualifying term occurs in the
// document. Always false when no disqualifiers were configured.
func (p *Program) Disqualified(doc ColumnSource, cols []string) bool {
	if p.Disqualifier == nil {
		return false
	}
	return p.EvalDoc(p.Disqualifier, doc, cols)
}
