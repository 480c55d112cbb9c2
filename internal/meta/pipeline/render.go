package pipeline

import (
	"fmt"
	"strings"

	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// RenderUnit renders the generated Go source for a unit: one file holding
// the struct per surviving target followed by the merged declarations.
// Rejected targets are omitted entirely; synthesis is all-or-nothing per
// target.
func RenderUnit(result *Result, pkg string) (string, error) {
	var b strings.Builder
	b.WriteString("// Code generated by metaforge. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n", pkg)

	imports := collectImports(result)
	if len(imports) > 0 {
		b.WriteString("\nimport (\n")
		for _, imp := range imports {
			fmt.Fprintf(&b, "\t%q\n", imp)
		}
		b.WriteString(")\n")
	}

	for _, tr := range result.Targets {
		if tr.State != Reflected && tr.State != Merged {
			continue
		}
		b.WriteString("\n")
		if err := renderStruct(&b, result, tr); err != nil {
			return "", err
		}
		if tr.Merged != nil && tr.Merged.Source != "" {
			b.WriteString("\n")
			b.WriteString(tr.Merged.Source)
		}
	}
	return b.String(), nil
}

func collectImports(result *Result) []string {
	seen := make(map[string]bool)
	var imports []string
	for _, tr := range result.Targets {
		if tr.Merged == nil {
			continue
		}
		for _, imp := range tr.Merged.Imports {
			if !seen[imp] {
				seen[imp] = true
				imports = append(imports, imp)
			}
		}
	}
	// Merged imports are already sorted per target; a final pass keeps the
	// union sorted too
	for i := 1; i < len(imports); i++ {
		for j := i; j > 0 && imports[j] < imports[j-1]; j-- {
			imports[j], imports[j-1] = imports[j-1], imports[j]
		}
	}
	return imports
}

// renderStruct renders the target's struct: an embedded base when the
// declaration extends one, the declared data members with json tags, and
// any fields injected by metaclasses
func renderStruct(b *strings.Builder, result *Result, tr *TargetResult) error {
	engine := result.Engine

	fmt.Fprintf(b, "type %s struct {\n", tr.Name)

	base, err := engine.BaseOf(tr.Handle)
	if err != nil {
		return err
	}
	if base.Valid() {
		baseName, err := engine.NameOf(base)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s\n", baseName)
	}

	members, err := engine.DataMembersOf(tr.Handle)
	if err != nil {
		return err
	}
	for member := range members {
		name, err := engine.NameOf(member)
		if err != nil {
			return err
		}
		t, err := engine.TypeOf(member)
		if err != nil {
			return err
		}
		goType, err := synth.GoType(engine, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "\t%s %s `json:%q`\n", synth.GoName(name), goType, name)
	}

	if tr.Merged != nil {
		for _, f := range tr.Merged.Fields {
			fmt.Fprintf(b, "\t%s %s\n", f.GoName, f.Signature)
		}
	}

	b.WriteString("}\n")
	return nil
}
