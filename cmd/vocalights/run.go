package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vocalights/config"
	"vocalights/internal/application"
	"vocalights/internal/infra/openai"
	"vocalights/internal/infra/pushover"
	"vocalights/internal/infra/voice"
	"vocalights/internal/lighting"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Listen for voice commands until the exit phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			f.applyDefaults(ctx)

			effects := lighting.NewEffects(logger.With("component", "effects"))
			dispatcher := lighting.NewDispatcher(f.lights, lighting.NewResolver(effects, logger), logger)

			console := voice.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			input, speakers, reporter, err := selectVoice(cfg, console, logger)
			if err != nil {
				return err
			}
			if cfg.Pushover.Enabled {
				speakers = append(speakers, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Pushover.Title, logger))
			}

			var stt application.SpeechToText = &application.NoopSTT{}
			if cfg.OpenAI.APIKey != "" {
				stt = openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Language, strings.Join(f.keywords(), ", "), logger)
			}

			assistant := application.NewAssistant(
				input,
				stt,
				dispatcher,
				speakers,
				application.Settings{
					ExitPhrase:    cfg.Voice.ExitPhrase,
					DefaultLights: cfg.Voice.DefaultLights,
					OnShutdown:    f.shutdownHook(effects, cfg.Shutdown),
					Reporter:      reporter,
				},
				logger,
			)

			logger.Info("starting vocalights", "voice_source", input.Name(), "lights", len(f.lights))

			if err := assistant.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return fmt.Errorf("voice loop: %w", err)
			}
			logger.Info("stopped")
			return nil
		},
	}
}

// selectVoice builds the configured input. Local sources print responses to
// the console; remote sources answer on their own channel.
func selectVoice(cfg *config.Config, console *voice.Console, logger *slog.Logger) (application.VoiceInput, application.MultiSpeaker, application.Reporter, error) {
	v := cfg.Voice
	logger = logger.With("component", "voice")

	switch v.Source {
	case "console":
		return console, application.MultiSpeaker{console}, console, nil
	case "file":
		return voice.NewFileSource(v.FileDir, logger), application.MultiSpeaker{console}, console, nil
	case "microphone":
		mic := voice.NewMicrophoneSource(v.WakeWord, v.SampleRate, v.PauseThreshold.Std(), logger)
		return mic, application.MultiSpeaker{console}, console, nil
	case "http":
		h := voice.NewHTTPSource(v.HTTPAddr, v.AuthToken, logger)
		return h, application.MultiSpeaker{h}, nil, nil
	case "mqtt":
		if cfg.MQTT.Broker == "" {
			return nil, nil, nil, errors.New("voice source mqtt requires mqtt.broker")
		}
		m := voice.NewMQTTChannel(voice.MQTTConfig{
			Broker:        cfg.MQTT.Broker,
			ClientID:      cfg.MQTT.ClientID,
			Username:      cfg.MQTT.Username,
			Password:      cfg.MQTT.Password,
			CommandTopic:  cfg.MQTT.CommandTopic,
			ResponseTopic: cfg.MQTT.ResponseTopic,
			QoS:           cfg.MQTT.QoS,
		}, logger)
		return m, application.MultiSpeaker{m}, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown voice source %q", v.Source)
	}
}
