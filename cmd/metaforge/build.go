package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/cli/config"
	"github.com/metaforge-lang/metaforge/internal/cli/ui"
	"github.com/metaforge-lang/metaforge/internal/meta/pipeline"
)

var (
	buildJSON    bool
	buildVerbose bool
)

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Output diagnostics in JSON format")
	buildCmd.Flags().BoolVar(&buildVerbose, "verbose", false, "Show detailed build output")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Synthesize Go source from .mf declarations",
	Long:  "Reflect all .mf files in the configured source directory and write the generated Go source",
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		mfFiles, err := filepath.Glob(filepath.Join(cfg.Build.SourceDir, "*.mf"))
		if err != nil {
			return fmt.Errorf("failed to find .mf files: %w", err)
		}
		if len(mfFiles) == 0 {
			return fmt.Errorf("no .mf files found in %s/ - are you in a Metaforge project?", cfg.Build.SourceDir)
		}
		if buildVerbose {
			fmt.Printf("Found %d .mf file(s)\n", len(mfFiles))
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

		var bar *ui.ProgressBar
		if !buildJSON && !buildVerbose {
			bar = ui.NewProgressBar(os.Stdout, ui.ProgressBarOptions{
				Total:   len(mfFiles),
				Message: "building",
			})
		}

		failed := false
		var allDiags []errors.Diagnostic
		for _, file := range mfFiles {
			if buildVerbose {
				fmt.Printf("Processing %s...\n", file)
			}
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
				if bar != nil {
					bar.Add(1)
				}
				continue
			}

			rendered, err := pipeline.RenderUnit(result, cfg.Build.Package)
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", file, err)
			}
			if err := writeGenerated(cfg, file, rendered); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
		}
		if bar != nil {
			bar.Finish()
		}

		if err := printDiagnostics(allDiags, buildJSON); err != nil {
			return err
		}
		if failed {
			return fmt.Errorf("build failed")
		}

		if !buildJSON {
			green := color.New(color.FgGreen, color.Bold)
			green.Printf("Build succeeded in %s\n", time.Since(startTime).Round(time.Millisecond))
		}
		return nil
	},
}

// writeGenerated writes the rendered source next to the output directory,
// one generated file per source file
func writeGenerated(cfg *config.Config, sourceFile, rendered string) error {
	if err := os.MkdirAll(cfg.Build.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.Build.OutputDir, err)
	}
	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	out := filepath.Join(cfg.Build.OutputDir, base+".go")
	if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if buildVerbose {
		fmt.Printf("Wrote %s\n", out)
	}
	return nil
}

// printDiagnostics renders diagnostics for the terminal or as JSON
func printDiagnostics(diags []errors.Diagnostic, asJSON bool) error {
	if len(diags) == 0 {
		return nil
	}
	if asJSON {
		out, err := errors.FormatDiagnosticsAsJSON(diags)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(errors.FormatDiagnosticsForTerminal(diags))
	return nil
}

// newLogger builds the structured logger used across the pipeline
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
