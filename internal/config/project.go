package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the name of the per-repository settings file
const ProjectFile = ".phasescan.yaml"

// ProjectConfig represents a .phasescan.yaml file in a repository
type ProjectConfig struct {
	Version string `yaml:"version"`

	// Task module to inspect, relative to the project root
	StartTasks string `yaml:"start_tasks,omitempty"`

	// Where the task routine toggles live
	RoutineFile string `yaml:"routine_file,omitempty"`

	// Output format for the list command: text, json, yaml
	Format string `yaml:"format,omitempty"`

	// Concurrent extractions for multi-file scans
	Concurrency int `yaml:"concurrency,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version:     "1.0",
		RoutineFile: "phasescan.routine.yaml",
		Format:      "text",
		Concurrency: 4,
	}
}

// LoadProjectConfig loads a .phasescan.yaml from the given directory.
// Relative paths in the file are resolved against that directory.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ProjectFile)

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .phasescan.yml
		configPath = filepath.Join(dir, ".phasescan.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.StartTasks = resolve(dir, cfg.StartTasks)
	cfg.RoutineFile = resolve(dir, cfg.RoutineFile)

	return cfg, nil
}

// SaveProjectConfig saves the config to .phasescan.yaml
func SaveProjectConfig(dir string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ProjectFile), data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProjectConfig) Merge(other *ProjectConfig) {
	if other == nil {
		return
	}

	if other.StartTasks != "" {
		c.StartTasks = other.StartTasks
	}

	if other.RoutineFile != "" {
		c.RoutineFile = other.RoutineFile
	}

	if other.Format != "" {
		c.Format = other.Format
	}

	if other.Concurrency != 0 {
		c.Concurrency = other.Concurrency
	}
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
