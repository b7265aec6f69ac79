package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const DefaultExitPhrase = "exit voice"

type Settings struct {
	// ExitPhrase ends the voice loop when contained in an utterance.
	ExitPhrase string
	// DefaultLights are prepended to every phrase.
	DefaultLights []string
	// OnShutdown runs exactly once when the loop ends, however it ends.
	OnShutdown func(ctx context.Context)
	Reporter   Reporter
}

type Assistant struct {
	input      VoiceInput
	stt        SpeechToText
	dispatcher Dispatcher
	speaker    Speaker
	settings   Settings
	logger     *slog.Logger

	shutdownOnce sync.Once
}

func NewAssistant(
	input VoiceInput,
	stt SpeechToText,
	dispatcher Dispatcher,
	speaker Speaker,
	settings Settings,
	logger *slog.Logger,
) *Assistant {
	if settings.ExitPhrase == "" {
		settings.ExitPhrase = DefaultExitPhrase
	}
	settings.ExitPhrase = strings.ToLower(settings.ExitPhrase)

	return &Assistant{
		input:      input,
		stt:        stt,
		dispatcher: dispatcher,
		speaker:    speaker,
		settings:   settings,
		logger:     logger,
	}
}

// Run processes utterances one at a time until the exit phrase is heard, the
// input is exhausted or ctx is canceled. The shutdown hook runs on every
// path out of Run.
func (a *Assistant) Run(ctx context.Context) error {
	defer a.Shutdown(context.WithoutCancel(ctx))

	a.logger.Info("starting voice input", "source", a.input.Name())
	if err := a.input.Start(ctx); err != nil {
		return fmt.Errorf("starting voice input: %w", err)
	}
	defer a.input.Stop()

	a.logger.Info("assistant ready, listening for commands", "exit_phrase", a.settings.ExitPhrase)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		exit, err := a.processOne(ctx)
		switch {
		case exit:
			a.logger.Info("exit phrase received")
			return nil
		case errors.Is(err, io.EOF):
			a.logger.Info("voice input exhausted")
			return nil
		case errors.Is(err, ErrNotUnderstood):
			a.logger.Debug("utterance not understood, skipping")
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("processing command", "error", err)
		}
	}
}

// Shutdown runs the configured hook. Calls after the first are no-ops.
func (a *Assistant) Shutdown(ctx context.Context) {
	a.shutdownOnce.Do(func() {
		if a.settings.OnShutdown == nil {
			return
		}
		a.logger.Info("running shutdown hook")
		a.settings.OnShutdown(ctx)
	})
}

func (a *Assistant) processOne(ctx context.Context) (bool, error) {
	utt, err := a.input.Next(ctx)
	if err != nil {
		return false, err
	}

	text, err := a.transcribe(ctx, utt)
	if err != nil {
		return false, err
	}

	if strings.Contains(strings.ToLower(text), a.settings.ExitPhrase) {
		if err := a.speaker.Speak(ctx, "Exiting voice control"); err != nil {
			a.logger.Warn("speaking exit notice", "error", err)
		}
		return true, nil
	}

	a.Handle(ctx, text)
	return false, nil
}

func (a *Assistant) transcribe(ctx context.Context, utt Utterance) (string, error) {
	if text := strings.TrimSpace(utt.Text); text != "" {
		a.logger.Info("received text command", "text", text)
		return text, nil
	}
	if len(utt.Audio) == 0 {
		return "", ErrNotUnderstood
	}

	a.logger.Info("received audio", "bytes", len(utt.Audio))
	text, err := a.stt.Transcribe(ctx, utt.Audio)
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNotUnderstood
	}

	a.logger.Info("transcribed", "text", text)
	return text, nil
}

// Handle dispatches a single phrase and reports the outcome.
func (a *Assistant) Handle(ctx context.Context, text string) string {
	phrase := text
	if len(a.settings.DefaultLights) > 0 {
		phrase = strings.Join(a.settings.DefaultLights, " ") + " " + text
	}

	results := a.dispatcher.Dispatch(ctx, phrase)
	for _, r := range results {
		a.logger.Info("result",
			"device", r.Device,
			"kind", r.Kind.String(),
			"keyword", r.Keyword,
			"message", r.Message,
		)
	}
	if a.settings.Reporter != nil {
		a.settings.Reporter.Report(phrase, results)
	}

	summary := Summarize(results)
	if summary == "" {
		return ""
	}
	if err := a.speaker.Speak(ctx, summary); err != nil {
		a.logger.Error("speaking result", "error", err)
	}
	return summary
}
