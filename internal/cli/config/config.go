package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the Metaforge project configuration
type Config struct {
	ProjectName string         `mapstructure:"project_name"`
	Build       BuildConfig    `mapstructure:"build"`
	Database    DatabaseConfig `mapstructure:"database"`
	Log         LogConfig      `mapstructure:"log"`
}

// BuildConfig represents build configuration
type BuildConfig struct {
	SourceDir string `mapstructure:"source_dir"`
	OutputDir string `mapstructure:"output_dir"`
	Package   string `mapstructure:"package"`
	Namespace string `mapstructure:"namespace"`
}

// DatabaseConfig represents database configuration for entity tooling
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from metaforge.yml or metaforge.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("build.source_dir", "meta")
	v.SetDefault("build.output_dir", "generated")
	v.SetDefault("build.package", "generated")
	v.SetDefault("build.namespace", "main")
	v.SetDefault("log.level", "info")

	// Set config name and paths
	v.SetConfigName("metaforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Build.SourceDir == "" {
		return fmt.Errorf("build.source_dir must not be empty")
	}
	if cfg.Build.OutputDir == "" {
		return fmt.Errorf("build.output_dir must not be empty")
	}
	if cfg.Build.Package == "" {
		return fmt.Errorf("build.package must not be empty")
	}
	return nil
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	// First check environment variable
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := Load()
	if err != nil {
		return ""
	}

	return cfg.Database.URL
}

// InProject checks if the current directory is a Metaforge project
func InProject() bool {
	if _, err := os.Stat("metaforge.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("metaforge.yaml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot tries to find the project root by looking for metaforge.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "metaforge.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "metaforge.yaml")); err == nil {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in a Metaforge project (no metaforge.yml found)")
		}
		dir = parent
	}
}
