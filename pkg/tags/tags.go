// Package tags implements wheel compatibility tags.
//
// A wheel filename declares a (possibly compressed) set of
// interpreter-ABI-platform triples, e.g. "py2.py3-none-any" expands to
// {py2-none-any, py3-none-any}. The resolver keeps a wheel when its set
// intersects the tags supported by the target interpreter.
package tags

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is a single interpreter/ABI/platform compatibility triple.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// String renders the tag in its canonical "interp-abi-platform" form.
func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// Set is an unordered set of tags.
type Set map[Tag]struct{}

// NewSet builds a Set from tags.
func NewSet(ts ...Tag) Set {
	s := make(Set, len(ts))
	for _, t := range ts {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts t.
func (s Set) Add(t Tag) { s[t] = struct{}{} }

// Contains reports whether t is in s.
func (s Set) Contains(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Intersects reports whether s and other share at least one tag.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if large.Contains(t) {
			return true
		}
	}
	return false
}

// Strings returns the tags in sorted string form.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}

// Parse expands a compressed tag string such as "cp311-abi3-manylinux_2_17_x86_64.manylinux2014_x86_64"
// into its individual tags. Tags are lowercased.
func Parse(s string) (Set, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "-")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid tag %q: want interpreter-abi-platform", s)
	}

	interps := strings.Split(parts[0], ".")
	abis := strings.Split(parts[1], ".")
	plats := strings.Split(parts[2], ".")

	set := make(Set, len(interps)*len(abis)*len(plats))
	for _, i := range interps {
		for _, a := range abis {
			for _, p := range plats {
				if i == "" || a == "" || p == "" {
					return nil, fmt.Errorf("invalid tag %q: empty component", s)
				}
				set.Add(Tag{Interpreter: i, ABI: a, Platform: p})
			}
		}
	}
	return set, nil
}

// ParseAll parses every entry of list and unions the results.
func ParseAll(list []string) (Set, error) {
	out := make(Set)
	for _, s := range list {
		set, err := Parse(s)
		if err != nil {
			return nil, err
		}
		for t := range set {
			out.Add(t)
		}
	}
	return out, nil
}
