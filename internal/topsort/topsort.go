// Package topsort orders named nodes so that every node comes after the
// nodes it depends on.
package topsort

import (
	"fmt"
	"sort"
	"strings"
)

// Graph maps a node name to the names it depends on.
type Graph map[string][]string

// CycleError reports a dependency cycle. Path starts and ends at the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// MissingError reports a dependency on a node that is not in the graph.
type MissingError struct {
	Node string
	Dep  string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%q depends on undefined %q", e.Node, e.Dep)
}

// Sort returns every node of g with dependencies first. Nodes that do not
// constrain each other keep name order, so the result is deterministic.
func Sort(g Graph) ([]string, error) {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g))
	result := make([]string, 0, len(g))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return &CycleError{Path: cycle}
		}

		state[name] = visiting
		path = append(path, name)

		deps := append([]string(nil), g[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := g[dep]; !ok {
				return &MissingError{Node: name, Dep: dep}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[name] = done
		result = append(result, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Filter returns the entries of order that are in keep, in order.
func Filter(order, keep []string) []string {
	want := make(map[string]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	out := make([]string, 0, len(keep))
	for _, name := range order {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}
