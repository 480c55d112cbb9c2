package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metaforge-lang/metaforge/internal/backend/entity"
	"github.com/metaforge-lang/metaforge/internal/backend/observe"
	"github.com/metaforge-lang/metaforge/internal/backend/serial"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "metaforge",
		Short: "Metaforge reflection and synthesis toolchain",
		Long: `Metaforge is a build-time reflection and synthesis toolchain.
It reflects .mf type declarations into a queryable meta-object model,
applies metaclasses to synthesize serialization, persistence and
observation code, and emits ordinary Go source.`,
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(describeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRegistry wires the built-in metaclasses: serializable over the json
// and binary formats, entity, and the behavioral trio
func newRegistry() (*compose.Registry, error) {
	registry := compose.NewRegistry()
	serializable := serial.NewMetaclass(serial.NewJSONFormat(), serial.NewBinaryFormat())
	if err := registry.Register(serial.MetaclassName, serializable); err != nil {
		return nil, err
	}
	if err := registry.Register(entity.MetaclassName, entity.NewMetaclass()); err != nil {
		return nil, err
	}
	if err := observe.Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
