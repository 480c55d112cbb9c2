package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/metaforge-lang/metaforge/compiler/errors"
)

// Span maps a line range of merged output back to the fragment that
// produced it, for provenance lookups during error reporting
type Span struct {
	Symbol     string
	StartLine  int // 1-based, inclusive
	EndLine    int // inclusive
	Provenance errors.Provenance
}

// Merged is the final synthesized declaration set for one target: struct
// field injections, rendered method/function source, and the provenance
// index over that source.
type Merged struct {
	Target  string
	Fields  []Fragment
	Source  string
	Spans   []Span
	Imports []string
}

// ProvenanceAt returns the provenance of the fragment covering the given
// source line of the merged output
func (m *Merged) ProvenanceAt(line int) (errors.Provenance, bool) {
	for _, s := range m.Spans {
		if line >= s.StartLine && line <= s.EndLine {
			return s.Provenance, true
		}
	}
	return errors.Provenance{}, false
}

// Symbols returns the contract symbols of all merged fragments in
// application order
func (m *Merged) Symbols() []string {
	symbols := make([]string, 0, len(m.Fields)+len(m.Spans))
	for _, f := range m.Fields {
		symbols = append(symbols, f.Symbol)
	}
	for _, s := range m.Spans {
		symbols = append(symbols, s.Symbol)
	}
	return symbols
}

// Merge concatenates all fragments for the target in application order and
// renders them as ordinary declarations for the host pipeline. Merging a
// failed target is an error: synthesis is all-or-nothing per target.
func (e *Emitter) Merge() (*Merged, error) {
	if e.failed {
		return nil, fmt.Errorf("cannot merge fragments for failed target %s", e.targetName)
	}

	merged := &Merged{Target: e.targetName}

	var sb strings.Builder
	line := 1

	seenImports := make(map[string]bool)
	for _, f := range e.fragments {
		for _, imp := range f.Imports {
			if !seenImports[imp] {
				seenImports[imp] = true
				merged.Imports = append(merged.Imports, imp)
			}
		}
	}
	sort.Strings(merged.Imports)

	for _, f := range e.fragments {
		if f.Kind == FragmentField {
			merged.Fields = append(merged.Fields, f)
			continue
		}

		start := line
		if f.Doc != "" {
			sb.WriteString("// ")
			sb.WriteString(f.Doc)
			sb.WriteString("\n")
			line++
		}

		sb.WriteString(renderHeader(e.targetName, f))
		sb.WriteString("\n")
		line++

		for _, stmt := range f.Body {
			if stmt != "" {
				sb.WriteString("\t")
				sb.WriteString(stmt)
			}
			sb.WriteString("\n")
			line++
		}

		sb.WriteString("}\n\n")
		line += 2

		merged.Spans = append(merged.Spans, Span{
			Symbol:     f.Symbol,
			StartLine:  start,
			EndLine:    line - 1,
			Provenance: f.Provenance,
		})
	}

	merged.Source = sb.String()
	return merged, nil
}

// renderHeader renders the opening line of a method or function fragment
func renderHeader(target string, f Fragment) string {
	switch f.Kind {
	case FragmentMethod:
		return fmt.Sprintf("func (%s *%s) %s%s {", ReceiverName(target), target, f.GoName, f.Signature)
	default:
		return fmt.Sprintf("func %s%s {", f.GoName, f.Signature)
	}
}
