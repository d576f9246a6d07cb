// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Span is one located pattern occurrence inside a searched text.
// Offsets are byte positions.
type Span struct {
	Pattern string
	Start   int
	End     int
}

// matcher answers boolean containment for one compiled pattern.
type matcher interface {
	matches(text string) bool
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) matches(text string) bool {
	return m.re.MatchString(text)
}

// isLiteral reports whether the pattern contains no regex
// metacharacters and can go through the Aho-Corasick fast path.
func isLiteral(pattern string) bool {
	return !strings.ContainsAny(pattern, `\.+*?()|[]{}^$`)
}

// asciiOnly reports whether every byte of s is ASCII.
func asciiOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// GroupProgram holds the executable form of one concept group: every
// pattern compiled to RE2, and all literal patterns additionally
// folded into a single Aho-Corasick automaton so extraction walks the
// text once for the whole literal set.
type GroupProgram struct {
	Name string

	// Node is the group's predicate subtree.
	Node Node

	regexes  []compiledPattern
	literals *ahocorasick.AhoCorasick
	litPats  []string // index-aligned with automaton pattern ids
}

type compiledPattern struct {
	pattern string
	re      *regexp.Regexp
}

// Matches reports whether any pattern of the group occurs in text.
func (g *GroupProgram) Matches(text string) bool {
	for _, cp := range g.regexes {
		if cp.re.MatchString(text) {
			return true
		}
	}
	if g.literals != nil {
		iter := g.literals.Iter(text)
		if iter.Next() != nil {
			return true
		}
	}
	return false
}

// FindAll returns the non-overlapping occurrences of the group's
// patterns in text, sorted by position. Occurrences from different
// patterns that overlap are reduced to the earliest (then longest) one
// so counts mean distinct regions of text.
func (g *GroupProgram) FindAll(text string) []Span {
	var spans []Span
	for _, cp := range g.regexes {
		for _, loc := range cp.re.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{Pattern: cp.pattern, Start: loc[0], End: loc[1]})
		}
	}
	if g.literals != nil {
		for _, m := range g.literals.FindAll(text) {
			spans = append(spans, Span{Pattern: g.litPats[m.Pattern()], Start: m.Start(), End: m.End()})
		}
	}
	return mergeSpans(spans)
}

// mergeSpans sorts spans and drops any span overlapping an earlier one.
func mergeSpans(spans []Span) []Span {
	if len(spans) <= 1 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		if s.Start >= out[len(out)-1].End {
			out = append(out, s)
		}
	}
	return out
}

// buildAutomaton compiles literal patterns into one automaton.
// LeftMostLongestMatch gives non-overlapping, leftmost-longest
// occurrences, matching the semantics of regexp.FindAllStringIndex.
//
// The automaton folds ASCII case only, so under case-insensitive
// compilation only all-ASCII literals are routed here; literals with
// non-ASCII letters compile as regexes, which fold Unicode the same
// way retention does. Text containing a non-ASCII case variant of an
// ASCII literal (the Kelvin sign for "k", say) still matches only
// through the retention regex, not the automaton.
func buildAutomaton(patterns []string, caseInsensitive bool) *ahocorasick.AhoCorasick {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: caseInsensitive,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(patterns)
	return &ac
}
