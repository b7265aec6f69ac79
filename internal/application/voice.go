package application

import (
	"context"
	"errors"
)

// ErrNotUnderstood is returned when an utterance could not be turned into
// text. The voice loop skips it silently.
var ErrNotUnderstood = errors.New("audio not understood")

// Utterance is one captured phrase. Text-based sources fill Text directly;
// audio sources leave it empty and carry the recording in Audio.
type Utterance struct {
	Text  string
	Audio []byte
}

// VoiceInput produces utterances. Next blocks until one is available and
// returns io.EOF once the source is exhausted.
type VoiceInput interface {
	Start(ctx context.Context) error
	Stop() error
	Next(ctx context.Context) (Utterance, error)
	Name() string
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// Speaker consumes response text.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type NoopSpeaker struct{}

func (n *NoopSpeaker) Speak(_ context.Context, _ string) error {
	return nil
}

// MultiSpeaker fans a response out to several speakers. Every speaker is
// tried; the errors are joined.
type MultiSpeaker []Speaker

func (m MultiSpeaker) Speak(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Speak(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
