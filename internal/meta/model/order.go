package model

import (
	"strings"

	"github.com/metaforge-lang/metaforge/compiler/parser"
)

// ReflectionOrder orders declarations so that every type is reflected after
// the types it references. A type that embeds itself, directly or through a
// chain of other types, fails fast with ReflectionCycle rather than
// deadlocking the batch. The order is deterministic: independent
// declarations keep their source order.
func ReflectionOrder(decls []*parser.TypeDecl) ([]*parser.TypeDecl, error) {
	byName := make(map[string]*parser.TypeDecl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[string]int, len(decls))
	ordered := make([]*parser.TypeDecl, 0, len(decls))
	var path []string

	var visit func(d *parser.TypeDecl) error
	visit = func(d *parser.TypeDecl) error {
		switch state[d.Name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, name := range path {
				if name == d.Name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), d.Name)
			return reflectionCycle(d.Loc, strings.Join(cycle, " -> "))
		}

		state[d.Name] = visiting
		path = append(path, d.Name)

		for _, dep := range declDependencies(d) {
			if target, ok := byName[dep]; ok {
				if err := visit(target); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		state[d.Name] = done
		ordered = append(ordered, d)
		return nil
	}

	for _, d := range decls {
		if err := visit(d); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// declDependencies collects the type names a declaration references: its
// base, its member types, sequence element types, and function signatures
func declDependencies(d *parser.TypeDecl) []string {
	var deps []string
	seen := make(map[string]bool)

	var walk func(ref *parser.TypeRef)
	walk = func(ref *parser.TypeRef) {
		if ref == nil {
			return
		}
		if ref.Kind == parser.RefArray {
			walk(ref.Elem)
			return
		}
		if !seen[ref.Name] {
			seen[ref.Name] = true
			deps = append(deps, ref.Name)
		}
	}

	if d.Base != "" && !seen[d.Base] {
		seen[d.Base] = true
		deps = append(deps, d.Base)
	}

	for _, m := range d.Members {
		walk(m.Type)
		for _, p := range m.Params {
			walk(p.Type)
		}
	}

	return deps
}
