package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vocalights/config"
)

const version = "0.3.0"

type globalOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "vocalights",
		Short:         "Voice control for smart lights",
		Long:          "vocalights maps spoken phrases onto commands for LIFX, Hue, Home Assistant,\nTuya and Elgato lights, and runs looping light effects in the background.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file (.yaml or .toml)")
	cmd.SetVersionTemplate("vocalights {{.Version}}\n")

	run := newRunCmd(opts)
	cmd.RunE = run.RunE

	cmd.AddCommand(
		run,
		newSayCmd(opts),
		newDiscoverCmd(opts),
	)

	return cmd
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
