package main

import (
	"context"
	"fmt"

	"github.com/QTest-hq/phasescan/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func routineCmd(a *app) *cobra.Command {
	var (
		outFile string
		write   bool
	)

	cmd := &cobra.Command{
		Use:   "routine [file]",
		Short: "Generate the task_routine section from the phases in a task module",
		Long: `Build the task_routine mapping (phase name -> 1/0) for the orchestration
config. Toggles already stored in the routine file are kept, new phases are
enabled, and phases that no longer exist are dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			names, err := a.extractor().Extract(ctx, path)
			if err != nil {
				return err
			}

			if outFile == "" {
				outFile = a.cfg.RoutineFile
			}

			existing, err := config.LoadTaskRoutine(outFile)
			if err != nil {
				return err
			}

			routine, stale := config.MergeRoutine(existing, names)
			for _, name := range stale {
				log.Warn().Str("phase", name).Msg("dropping phase no longer defined in source")
			}

			if !write {
				data, err := config.MarshalTaskRoutine(routine)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := config.SaveTaskRoutine(outFile, routine); err != nil {
				return fmt.Errorf("failed to write routine: %w", err)
			}

			log.Info().
				Str("file", outFile).
				Int("phases", len(routine.Phases)).
				Int("enabled", len(routine.EnabledPhases())).
				Msg("task routine written")

			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Routine file to merge with (defaults to the configured routine file)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the merged routine back instead of printing it")

	return cmd
}
