package testparser

import (
	"sort"
	"strings"
)

// Registry maps parser names and aliases to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry with every built-in parser.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	goParser := &GoParser{}
	cargoParser := &CargoParser{}
	pytestParser := &PytestParser{}
	junitParser := &JUnitParser{}

	r.parsers["go"] = goParser
	r.parsers["cargo"] = cargoParser
	r.parsers["rust"] = cargoParser
	r.parsers["pytest"] = pytestParser
	r.parsers["python"] = pytestParser
	r.parsers["junit"] = junitParser
	r.parsers["maven"] = junitParser
	r.parsers["gradle"] = junitParser

	return r
}

// Lookup returns the parser registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(name)]
	return p, ok
}

// Register adds or replaces a parser.
func (r *Registry) Register(name string, p Parser) {
	r.parsers[strings.ToLower(name)] = p
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
