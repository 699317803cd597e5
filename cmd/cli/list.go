package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/QTest-hq/phasescan/internal/gitsource"
	"github.com/QTest-hq/phasescan/internal/phases"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func listCmd(a *app) *cobra.Command {
	var (
		format  string
		rev     string
		repoDir string
	)

	cmd := &cobra.Command{
		Use:   "list [file...]",
		Short: "List the phase functions defined in task modules",
		Long: `List every function definition ending in _phase, in source order.
Without arguments the configured start-tasks file is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if format == "" {
				format = a.project.Format
			}

			var opts []phases.Option
			if rev != "" {
				source, err := gitsource.Open(repoDir, rev)
				if err != nil {
					return err
				}
				log.Debug().Str("commit", source.Commit()).Msg("reading from git")
				opts = append(opts, phases.WithSource(source))
			}
			ex := a.extractor(opts...)

			paths := args
			if len(paths) == 0 {
				path, err := ex.DefaultPath()
				if err != nil {
					return err
				}
				paths = []string{path}
			}

			results, err := ex.ExtractAll(ctx, paths, a.cfg.Concurrency)
			if err != nil {
				return err
			}

			return writeResults(cmd.OutOrStdout(), format, results)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (text, json, yaml)")
	cmd.Flags().StringVarP(&rev, "rev", "r", "", "Read files at this git revision instead of the worktree")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "Repository used with --rev")

	return cmd
}

// writeResults prints results. Text output for a single file is one name
// per line so it can be piped; several files get a header each.
func writeResults(w io.Writer, format string, results []phases.Result) error {
	switch format {
	case "", "text":
		if len(results) == 1 {
			for _, name := range results[0].Phases {
				fmt.Fprintln(w, name)
			}
			return nil
		}
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s:\n", r.Path)
			for _, name := range r.Phases {
				fmt.Fprintf(w, "  %s\n", name)
			}
		}
		return nil

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()

	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
