package main

import (
	"fmt"
	"os"

	"github.com/QTest-hq/phasescan/internal/config"
	"github.com/QTest-hq/phasescan/internal/phases"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries configuration shared by every subcommand
type app struct {
	projectDir string
	verbose    bool

	cfg     *config.Config
	project *config.ProjectConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "phasescan",
		Short: "phasescan - find task phases without importing them",
		Long: `phasescan reads a Python task module as a syntax tree and lists every
function whose name ends in _phase, so an orchestration config can be
bootstrapped before the module itself is importable.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.projectDir, "project", "p", ".", "Directory holding .phasescan.yaml")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(routineCmd(a))
	rootCmd.AddCommand(watchCmd(a))

	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	project, err := config.LoadProjectConfig(a.projectDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", config.ProjectFile, err)
	}
	cfg.ApplyProject(project)

	level := cfg.Level()
	if a.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	a.cfg = cfg
	a.project = project

	log.Debug().
		Str("start_tasks", cfg.StartTasks).
		Str("routine_file", cfg.RoutineFile).
		Int("concurrency", cfg.Concurrency).
		Msg("configuration loaded")

	return nil
}

func (a *app) extractor(opts ...phases.Option) *phases.Extractor {
	if a.cfg.StartTasks != "" {
		opts = append([]phases.Option{phases.WithDefaultSource(a.cfg.StartTasks)}, opts...)
	}
	return phases.New(opts...)
}
