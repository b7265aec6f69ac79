//go:build portaudio

package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"

	"vocalights/internal/application"
)

const (
	framesPerBuffer  = 1024
	silenceThreshold = int16(500)
	maxPhrase        = 10 * time.Second
)

// MicrophoneSource records phrases from the default input device. A phrase
// ends after pauseThreshold of silence following speech.
type MicrophoneSource struct {
	stream         *portaudio.Stream
	frame          []int16
	wakeWord       string
	sampleRate     int
	pauseThreshold time.Duration
	logger         *slog.Logger
}

func NewMicrophoneSource(wakeWord string, sampleRate int, pauseThreshold time.Duration, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		wakeWord:       wakeWord,
		sampleRate:     sampleRate,
		pauseThreshold: pauseThreshold,
		logger:         logger,
		frame:          make([]int16, framesPerBuffer),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}
	m.stream = stream

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	m.logger.Info("microphone started", "sample_rate", m.sampleRate, "pause_threshold", m.pauseThreshold)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	portaudio.Terminate()
	return nil
}

func (m *MicrophoneSource) Next(ctx context.Context) (application.Utterance, error) {
	m.logger.Info("say something", "wake_word", m.wakeWord)

	pauseSamples := int(m.pauseThreshold.Seconds() * float64(m.sampleRate))
	maxSamples := int(maxPhrase.Seconds() * float64(m.sampleRate))

	samples := make([]int16, 0, m.sampleRate*5)
	heard := false
	silent := 0

	for {
		select {
		case <-ctx.Done():
			return application.Utterance{}, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil {
			return application.Utterance{}, fmt.Errorf("reading from stream: %w", err)
		}

		if isSilent(m.frame) {
			if !heard {
				continue
			}
			silent += len(m.frame)
		} else {
			heard = true
			silent = 0
		}
		samples = append(samples, m.frame...)

		if silent >= pauseSamples || len(samples) >= maxSamples {
			break
		}
	}

	wav, err := samplesToWav(samples, m.sampleRate)
	if err != nil {
		return application.Utterance{}, err
	}
	return application.Utterance{Audio: wav}, nil
}

func isSilent(frame []int16) bool {
	for _, sample := range frame {
		if sample > silenceThreshold || sample < -silenceThreshold {
			return false
		}
	}
	return true
}

func samplesToWav(samples []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	header := []any{
		[]byte("RIFF"), int32(36 + dataSize), []byte("WAVE"),
		[]byte("fmt "), int32(16), int16(1), int16(1),
		int32(sampleRate), int32(sampleRate * 2), int16(2), int16(16),
		[]byte("data"), int32(dataSize),
	}
	for _, field := range header {
		if err := binary.Write(&buf, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("writing samples: %w", err)
	}

	return buf.Bytes(), nil
}
