package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"vocalights/internal/domain"
	"vocalights/internal/infra"
	"vocalights/internal/lighting"
)

// Client talks to the Tuya cloud OpenAPI. It satisfies lighting.Driver;
// every device gets its own command call and status.
type Client struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.RWMutex
	token    string
	expireAt time.Time
}

func NewClient(clientID, secret, region string, logger *slog.Logger) *Client {
	baseURL := "https://openapi.tuyaus.com"
	switch strings.ToLower(region) {
	case "eu":
		baseURL = "https://openapi.tuyaeu.com"
	case "cn":
		baseURL = "https://openapi.tuyacn.com"
	case "in":
		baseURL = "https://openapi.tuyain.com"
	}

	return NewClientWithURL(clientID, secret, baseURL, logger)
}

func NewClientWithURL(clientID, secret, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		clientID:   clientID,
		secret:     secret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// CloudDevice is a device as listed by the Tuya cloud.
type CloudDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Online   bool   `json:"online"`
}

func (d CloudDevice) IsLight() bool {
	switch d.Category {
	case "dj", "dd", "fwd", "xdd", "dc", "tgq":
		return true
	default:
		return false
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

type dataPoint struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

func (c *Client) Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	points, err := buildCommands(cmd)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"commands": points})
	if err != nil {
		return nil, fmt.Errorf("marshaling commands: %w", err)
	}

	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if err := c.sendCommands(ctx, id, body); err != nil {
			c.logger.Warn("tuya command failed", "device", id, "command", cmd.String(), "error", err)
			statuses = append(statuses, domain.StatusError(id, err))
			continue
		}
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

func (c *Client) sendCommands(ctx context.Context, id string, body []byte) error {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/commands", id)
	if _, err := c.call(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("executing command: %w", err)
	}
	return nil
}

func buildCommands(cmd domain.Command) ([]dataPoint, error) {
	switch cmd.Kind {
	case domain.CommandPowerSet:
		return []dataPoint{{Code: "switch_led", Value: cmd.Power}}, nil

	case domain.CommandBrightnessSet:
		return []dataPoint{{Code: "bright_value_v2", Value: cmd.Brightness}}, nil

	case domain.CommandColorSet:
		h, s, v := cmd.Color.HSV()
		if s == 0 {
			return []dataPoint{
				{Code: "work_mode", Value: "white"},
				{Code: "temp_value_v2", Value: kelvinToTemp(cmd.Color.Kelvin)},
			}, nil
		}
		return []dataPoint{
			{Code: "work_mode", Value: "colour"},
			{Code: "colour_data_v2", Value: map[string]int{
				"h": int(h) % 360,
				"s": int(s * 1000),
				"v": int(v * 1000),
			}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", lighting.ErrUnsupported, cmd.Kind)
	}
}

// kelvinToTemp maps 2700K..6500K onto Tuya's 0..1000 white temperature.
func kelvinToTemp(k uint16) int {
	const warm, cool = 2700, 6500
	switch {
	case k <= warm:
		return 0
	case k >= cool:
		return 1000
	default:
		return int(k-warm) * 1000 / (cool - warm)
	}
}

func (c *Client) State(ctx context.Context, id string) (domain.DeviceState, error) {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/status", id)
	result, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("fetching status of %s: %w", id, err)
	}

	var points []dataPoint
	if err := json.Unmarshal(result, &points); err != nil {
		return domain.DeviceState{}, fmt.Errorf("parsing status: %w", err)
	}

	var state domain.DeviceState
	for _, p := range points {
		switch p.Code {
		case "switch_led":
			state.On, _ = p.Value.(bool)
		case "bright_value_v2", "bright_value":
			if f, ok := p.Value.(float64); ok {
				state.Brightness = int(f)
			}
		}
	}
	return state, nil
}

func (c *Client) GetDevices(ctx context.Context) ([]CloudDevice, error) {
	result, err := c.call(ctx, http.MethodGet, "/v1.0/iot-01/associated-users/devices", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching devices: %w", err)
	}

	var payload struct {
		Devices []CloudDevice `json:"devices"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("parsing devices: %w", err)
	}
	return payload.Devices, nil
}

// call performs a signed request and unwraps the API envelope.
func (c *Client) call(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	raw, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("tuya error: %s", resp.Msg)
	}
	return resp.Result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	var respBody []byte
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("client_id", c.clientID)
		req.Header.Set("access_token", token)
		req.Header.Set("sign", c.calcSign(timestamp, token, method, path, body))
		req.Header.Set("t", timestamp)
		req.Header.Set("sign_method", "HMAC-SHA256")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("tuya API error %d (retryable): %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return infra.Permanent(fmt.Errorf("tuya API error %d: %s", resp.StatusCode, string(respBody)))
		}

		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return respBody, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Add(5*time.Minute).Before(c.expireAt) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(5*time.Minute).Before(c.expireAt) {
		return nil
	}

	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	path := "/v1.0/token?grant_type=1"
	sign := c.calcSign(timestamp, "", http.MethodGet, path, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("client_id", c.clientID)
	req.Header.Set("sign", sign)
	req.Header.Set("t", timestamp)
	req.Header.Set("sign_method", "HMAC-SHA256")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}

	var tokenResp struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
		Result  struct {
			AccessToken string `json:"access_token"`
			ExpireTime  int64  `json:"expire_time"`
		} `json:"result"`
	}

	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	if !tokenResp.Success {
		return fmt.Errorf("token error: %s", tokenResp.Msg)
	}

	c.token = tokenResp.Result.AccessToken
	c.expireAt = time.Now().Add(time.Duration(tokenResp.Result.ExpireTime) * time.Second)

	return nil
}

func (c *Client) calcSign(timestamp, token, method, path string, body []byte) string {
	str := c.clientID + token + timestamp + stringToSign(method, path, body)
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(str))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func stringToSign(method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return method + "\n" + hex.EncodeToString(bodyHash[:]) + "\n\n" + path
}
