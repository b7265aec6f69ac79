package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"vocalights/internal/application"
	"vocalights/internal/infra"
)

const defaultBaseURL = "https://api.openai.com/v1"

type WhisperClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	language   string
	prompt     string
	logger     *slog.Logger
}

// NewWhisperClient builds a transcription client. prompt is passed to the
// model as vocabulary hints, typically the command keywords.
func NewWhisperClient(apiKey, language, prompt string, logger *slog.Logger) *WhisperClient {
	return NewWhisperClientWithURL(apiKey, language, prompt, defaultBaseURL, logger)
}

func NewWhisperClientWithURL(apiKey, language, prompt, baseURL string, logger *slog.Logger) *WhisperClient {
	return &WhisperClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		language:   language,
		prompt:     prompt,
		logger:     logger,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe returns the recognized text, or application.ErrNotUnderstood
// when the model heard nothing.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var result transcriptionResponse

	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part, err := writer.CreateFormFile("file", "audio.wav")
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating form file: %w", err))
		}

		if _, err = part.Write(audio); err != nil {
			return infra.Permanent(fmt.Errorf("writing audio: %w", err))
		}

		fields := map[string]string{
			"model":    "whisper-1",
			"language": c.language,
			"prompt":   c.prompt,
		}
		for name, value := range fields {
			if value == "" {
				continue
			}
			if err = writer.WriteField(name, value); err != nil {
				return infra.Permanent(fmt.Errorf("writing %s field: %w", name, err))
			}
		}

		if err = writer.Close(); err != nil {
			return infra.Permanent(fmt.Errorf("closing writer: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("whisper API error %d: %s (retryable)", resp.StatusCode, string(respBody))
			}
			return infra.Permanent(fmt.Errorf("whisper API error %d: %s", resp.StatusCode, string(respBody)))
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", application.ErrNotUnderstood
	}

	c.logger.Debug("transcribed audio", "bytes", len(audio), "text", text)
	return text, nil
}
