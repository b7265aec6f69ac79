package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vocalights/config"
	"vocalights/internal/application"
	"vocalights/internal/infra/voice"
	"vocalights/internal/lighting"
)

func newSayCmd(opts *globalOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "say <phrase...>",
		Short: "Run a single phrase against the configured lights",
		Long:  "say dispatches one phrase exactly as if it had been spoken and prints\nthe result for every targeted light. If the phrase starts an effect,\nsay keeps running until interrupted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.Log, os.Stderr)
			ctx := cmd.Context()

			f, err := buildFleet(ctx, cfg, logger)
			if err != nil {
				return err
			}

			effects := lighting.NewEffects(logger.With("component", "effects"))
			dispatcher := lighting.NewDispatcher(f.lights, lighting.NewResolver(effects, logger), logger)
			console := voice.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())

			var speaker application.Speaker = console
			if quiet {
				speaker = &application.NoopSpeaker{}
			}

			assistant := application.NewAssistant(
				console,
				&application.NoopSTT{},
				dispatcher,
				speaker,
				application.Settings{
					DefaultLights: cfg.Voice.DefaultLights,
					Reporter:      console,
				},
				logger,
			)
			assistant.Handle(ctx, strings.Join(args, " "))

			if effects.Running() == 0 {
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d effect(s) running, press Ctrl-C to stop\n", effects.Running())
			<-ctx.Done()

			f.shutdownHook(effects, cfg.Shutdown)(context.WithoutCancel(ctx))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print the result set only, without the spoken summary")
	return cmd
}
