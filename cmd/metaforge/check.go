package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/cli/config"
	"github.com/metaforge-lang/metaforge/internal/cli/ui"
	"github.com/metaforge-lang/metaforge/internal/meta/pipeline"
)

var checkJSON bool

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output diagnostics in JSON format")
}

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Validate .mf declarations without writing output",
	Long:  "Run reflection, composition planning and synthesis for every target and report the outcome per declaration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		files := args
		if len(files) == 0 {
			files, err = filepath.Glob(filepath.Join(cfg.Build.SourceDir, "*.mf"))
			if err != nil {
				return err
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no .mf files to check")
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

		p := pipeline.New(registry, log, cfg.Build.Namespace)

		failed := false
		var allDiags []errors.Diagnostic
		for _, file := range files {
			source, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			result, err := p.Run(cmd.Context(), file, string(source))
			if err != nil {
				return err
			}
			allDiags = append(allDiags, result.AllDiagnostics()...)
			if result.Failed() {
				failed = true
			}
			if !checkJSON {
				printTargetStates(file, result, registry.Names())
			}
		}

		if err := printDiagnostics(allDiags, checkJSON); err != nil {
			return err
		}
		if failed {
			return fmt.Errorf("check failed")
		}
		if !checkJSON {
			ui.WriteSuccess(os.Stdout, "All declarations check out", false)
		}
		return nil
	},
}

// printTargetStates renders one line per declaration with its final
// pipeline state, suggesting registered metaclasses on unknown-metaclass
// failures
func printTargetStates(file string, result *pipeline.Result, known []string) {
	registered := make(map[string]bool, len(known))
	for _, name := range known {
		registered[name] = true
	}

	fmt.Printf("%s:\n", file)
	for _, tr := range result.Targets {
		mark := color.GreenString("ok")
		if tr.State == pipeline.Rejected {
			mark = color.RedString("rejected")
		}
		fmt.Printf("  %-20s %s\n", tr.Name, mark)

		for _, d := range tr.Diagnostics {
			if d.Code != errors.ErrUnknownMetaclass {
				continue
			}
			for _, ann := range tr.Decl.Annotations {
				if registered[ann.Name] {
					continue
				}
				similar := ui.FindSimilar(ann.Name, known, nil)
				fmt.Print(ui.MetaclassNotFoundError(ann.Name, similar, color.NoColor))
			}
		}
	}
}
