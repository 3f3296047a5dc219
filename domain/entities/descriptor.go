package entities

import "sort"

// ModuleDescriptor is the loader's input: a stable module id, the raw binary, and
// the capability names the module is allowed to import.
type ModuleDescriptor struct {
	ID     string   `json:"id" yaml:"id"`
	Binary []byte   `json:"-" yaml:"-"`
	Grants []string `json:"grants,omitempty" yaml:"grants,omitempty"`
}

// GrantSet is the immutable set of capability names granted to one module.
type GrantSet map[string]struct{}

// NewGrantSet builds a GrantSet from a list of names. Empty names are skipped.
func NewGrantSet(names ...string) GrantSet {
	g := make(GrantSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		g[n] = struct{}{}
	}
	return g
}

// Has reports whether name is granted.
func (g GrantSet) Has(name string) bool {
	_, ok := g[name]
	return ok
}

// Names returns the granted names, sorted.
func (g GrantSet) Names() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
