package pushover

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

// Client forwards responses as push notifications. It satisfies
// application.Speaker.
type Client struct {
	token      string
	userKey    string
	title      string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(token, userKey, title string, logger *slog.Logger) *Client {
	return NewClientWithURL(token, userKey, title, defaultEndpoint, logger)
}

func NewClientWithURL(token, userKey, title, endpoint string, logger *slog.Logger) *Client {
	if title == "" {
		title = "VocaLights"
	}
	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Speak sends text as a notification. Empty text and an unconfigured client
// are no-ops.
func (c *Client) Speak(ctx context.Context, text string) error {
	if c.token == "" || c.userKey == "" || strings.TrimSpace(text) == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", text)
	data.Set("title", c.title)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}

	c.logger.Debug("notification sent", "title", c.title)
	return nil
}
