package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/QTest-hq/phasescan/internal/watcher"
	"github.com/spf13/cobra"
)

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Print the phase list every time the task module changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ex := a.extractor()

			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				var err error
				if path, err = ex.DefaultPath(); err != nil {
					return err
				}
			}

			w, err := watcher.New(path, ex, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return w.Run(ctx, func(u watcher.Update) {
				stamp := u.At.Format("15:04:05")
				if u.Err != nil {
					fmt.Fprintf(out, "[%s] error: %v\n", stamp, u.Err)
					return
				}
				fmt.Fprintf(out, "[%s] %d phases: %s\n", stamp, len(u.Phases), strings.Join(u.Phases, ", "))
			})
		},
	}

	return cmd
}
