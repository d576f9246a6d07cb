// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query loads search query specifications: JSON concept-group
// files and simple-mode pattern lists. It only normalizes and
// validates; compilation to predicates lives in internal/expr.
package query

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReservedKey is the JSON key holding disqualifying terms. It is never
// treated as a concept group.
const ReservedKey = "disqualifying_terms"

// Group is one named concept group: a sequence of alternative sets,
// each a set of interchangeable patterns. Any pattern of any
// alternative set matching a document satisfies the group.
type Group struct {
	Name         string
	Alternatives [][]string
}

// Patterns returns all patterns of the group in declaration order.
func (g Group) Patterns() []string {
	var out []string
	for _, alt := range g.Alternatives {
		out = append(out, alt...)
	}
	return out
}

// Spec is a normalized query specification. Groups keep the order they
// appeared in so compiled output columns are stable across runs.
type Spec struct {
	Groups []Group
}

// Disqualifiers is a flat set of veto patterns: any one matching a
// document excludes it regardless of concept-group matches.
type Disqualifiers []string

// GroupNames returns the concept-group names in declaration order.
func (s *Spec) GroupNames() []string {
	names := make([]string, len(s.Groups))
	for i, g := range s.Groups {
		names[i] = g.Name
	}
	return names
}

// Group returns the named group, or false if absent.
func (s *Spec) Group(name string) (Group, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// LoadJSON reads one or more query JSON files and merges them into a
// single Spec plus the union of their disqualifying terms. Each file
// must hold a top-level object mapping concept-group names to arrays
// of arrays of non-empty pattern strings. A group name appearing in
// more than one file is an error.
func LoadJSON(paths ...string) (*Spec, Disqualifiers, error) {
	spec := &Spec{}
	var disq Disqualifiers
	seen := make(map[string]string) // group name -> file it came from

	for _, path := range paths {
		groups, fileDisq, err := loadOneJSON(path)
		if err != nil {
			return nil, nil, err
		}
		for _, g := range groups {
			if prev, dup := seen[g.Name]; dup {
				return nil, nil, fmt.Errorf("%s: concept group %q already defined in %s", path, g.Name, prev)
			}
			seen[g.Name] = path
			spec.Groups = append(spec.Groups, g)
		}
		disq = append(disq, fileDisq...)
	}

	if len(spec.Groups) == 0 {
		return nil, nil, fmt.Errorf("no concept groups found in %s", strings.Join(paths, ", "))
	}
	return spec, disq, nil
}

// loadOneJSON parses a single query file with a token decoder so group
// order is preserved; encoding/json maps would shuffle it.
func loadOneJSON(path string) ([]Group, Disqualifiers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading query file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: parsing query JSON: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("%s: top-level query value must be an object, got %v", path, tok)
	}

	var groups []Group
	var disq Disqualifiers

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: parsing query JSON: %w", path, err)
		}
		name := keyTok.(string)

		var alts [][]string
		if err := dec.Decode(&alts); err != nil {
			return nil, nil, fmt.Errorf("%s: group %q: value must be a list of lists of strings: %w", path, name, err)
		}
		if err := validateAlternatives(alts); err != nil {
			return nil, nil, fmt.Errorf("%s: group %q: %w", path, name, err)
		}

		if name == ReservedKey {
			// Disqualifiers keep the nested shape on disk but are a
			// flat pattern set in the model.
			for _, alt := range alts {
				disq = append(disq, alt...)
			}
			continue
		}
		groups = append(groups, Group{Name: name, Alternatives: alts})
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("%s: parsing query JSON: %w", path, err)
	}
	return groups, disq, nil
}

func validateAlternatives(alts [][]string) error {
	if len(alts) == 0 {
		return fmt.Errorf("at least one alternative set required")
	}
	for i, alt := range alts {
		if len(alt) == 0 {
			return fmt.Errorf("alternative set %d is empty", i+1)
		}
		for _, p := range alt {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("alternative set %d contains an empty pattern", i+1)
			}
		}
	}
	return nil
}

// LoadSimple reads a plain-text pattern file: one literal pattern per
// line, blank lines and '#' comments skipped. All patterns become
// single-pattern alternative sets of one concept group named after the
// file's base name without extension.
func LoadSimple(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}
	defer f.Close()

	var alts [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		alts = append(alts, []string{line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading pattern file %s: %w", path, err)
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("no valid patterns found in %s", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Spec{Groups: []Group{{Name: name, Alternatives: alts}}}, nil
}
