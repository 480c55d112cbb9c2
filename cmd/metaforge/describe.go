package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metaforge-lang/metaforge/internal/cli/config"
	"github.com/metaforge-lang/metaforge/internal/cli/ui"
	"github.com/metaforge-lang/metaforge/internal/meta/pipeline"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
)

var describeNoColor bool

func init() {
	describeCmd.Flags().BoolVar(&describeNoColor, "no-color", false, "Disable colored output")
}

var describeCmd = &cobra.Command{
	Use:   "describe <file> [type]",
	Short: "Show the reflected meta-object model of a file",
	Long:  "Reflect a .mf file and print the declared types, their members, attributes and synthesized declarations",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer log.Sync()

		source, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		p := pipeline.New(registry, log, cfg.Build.Namespace)
		result, err := p.Run(cmd.Context(), args[0], string(source))
		if err != nil {
			return err
		}
		if result.Engine == nil {
			return printDiagnostics(result.AllDiagnostics(), false)
		}

		only := ""
		if len(args) > 1 {
			only = args[1]
		}
		found := false
		for _, tr := range result.Targets {
			if only != "" && tr.Name != only {
				continue
			}
			found = true
			if err := describeTarget(result.Engine, tr); err != nil {
				return err
			}
		}
		if only != "" && !found {
			declared := make([]string, len(result.Targets))
			for i, tr := range result.Targets {
				declared[i] = tr.Name
			}
			similar := ui.FindSimilar(only, declared, nil)
			fmt.Print(ui.TypeNotFoundError(only, similar, describeNoColor))
			return fmt.Errorf("type %s not declared in %s", only, args[0])
		}
		return printDiagnostics(result.AllDiagnostics(), false)
	},
}

func describeTarget(engine *query.Engine, tr *pipeline.TargetResult) error {
	ui.Header(os.Stdout, tr.Name, describeNoColor)

	kv := ui.NewKeyValueTable(os.Stdout, describeNoColor)
	kv.AddRow("state", tr.State.String())
	if tr.State != pipeline.Unreflected && tr.State != pipeline.Rejected {
		poly, err := engine.IsPolymorphic(tr.Handle)
		if err != nil {
			return err
		}
		kv.AddRow("polymorphic", fmt.Sprintf("%t", poly))
		base, err := engine.BaseOf(tr.Handle)
		if err != nil {
			return err
		}
		if base.Valid() {
			baseName, err := engine.NameOf(base)
			if err != nil {
				return err
			}
			kv.AddRow("base", baseName)
		}
	}
	if len(tr.Decl.Annotations) > 0 {
		names := make([]string, len(tr.Decl.Annotations))
		for i, ann := range tr.Decl.Annotations {
			names[i] = ann.Name
		}
		kv.AddRow("metaclasses", strings.Join(names, ", "))
	}
	kv.Render()

	if tr.State == pipeline.Rejected || !tr.Handle.Valid() {
		return nil
	}

	members, err := engine.MembersOf(tr.Handle)
	if err != nil {
		return err
	}
	table := ui.NewTable(os.Stdout, []string{"member", "kind", "type", "attributes"}, &ui.TableOptions{NoColor: describeNoColor})
	for member := range members {
		name, err := engine.NameOf(member)
		if err != nil {
			return err
		}
		kind, err := engine.KindOf(member)
		if err != nil {
			return err
		}
		t, err := engine.TypeOf(member)
		if err != nil {
			return err
		}
		typeName := ""
		if t.Valid() {
			if typeName, err = engine.NameOf(t); err != nil {
				return err
			}
		}
		attrs, err := engine.AttributesOf(member)
		if err != nil {
			return err
		}
		names := make([]string, 0, attrs.Len())
		for i := 0; i < attrs.Len(); i++ {
			names = append(names, attrs.At(i).Name)
		}
		table.AddRow(name, kind.String(), typeName, strings.Join(names, ", "))
	}
	table.Render()

	if tr.Merged != nil {
		list := ui.NewList(os.Stdout, ui.ListOptions{NoColor: describeNoColor})
		for _, symbol := range tr.Merged.Symbols() {
			list.AddItem(symbol)
		}
		fmt.Println("synthesized:")
		list.Render()
	}
	return nil
}
