package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vocalights/internal/domain"
	"vocalights/internal/infra"
	"vocalights/internal/lighting"
)

var ErrEntityNotFound = errors.New("entity not found")

// Client drives lights through the Home Assistant REST API. It satisfies
// lighting.Driver.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      infra.RetryConfig
	logger     *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      infra.DefaultRetryConfig(),
		logger:     logger,
	}
}

// Entity represents a Home Assistant entity
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
}

func (e Entity) FriendlyName() string {
	if name, ok := e.Attributes["friendly_name"].(string); ok {
		return name
	}
	return e.EntityID
}

// Apply issues one service call covering every entity in ids. Home Assistant
// reports no per-entity outcome, so all ids share the call's result.
func (c *Client) Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	service, data, err := buildServiceCall(cmd)
	if err != nil {
		return nil, err
	}
	data["entity_id"] = ids

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("home assistant service call", "service", service, "entities", ids, "command", cmd.String())
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/services/light/"+service, body); err != nil {
		return nil, fmt.Errorf("calling light.%s: %w", service, err)
	}

	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

func buildServiceCall(cmd domain.Command) (string, map[string]any, error) {
	data := make(map[string]any)
	if cmd.Transition > 0 {
		data["transition"] = cmd.Transition.Seconds()
	}

	switch cmd.Kind {
	case domain.CommandPowerSet:
		if cmd.Power {
			return "turn_on", data, nil
		}
		return "turn_off", data, nil

	case domain.CommandBrightnessSet:
		data["brightness"] = cmd.Brightness
		return "turn_on", data, nil

	case domain.CommandColorSet:
		data["xy_color"] = []float64{cmd.Color.X, cmd.Color.Y}
		return "turn_on", data, nil

	default:
		return "", nil, fmt.Errorf("%w: %s", lighting.ErrUnsupported, cmd.Kind)
	}
}

func (c *Client) State(ctx context.Context, id string) (domain.DeviceState, error) {
	entity, err := c.GetEntity(ctx, id)
	if err != nil {
		return domain.DeviceState{}, err
	}

	state := domain.DeviceState{On: entity.State == "on"}
	if b, ok := entity.Attributes["brightness"].(float64); ok {
		state.Brightness = int(b)
	}
	if xy, ok := entity.Attributes["xy_color"].([]any); ok && len(xy) == 2 {
		x, _ := xy[0].(float64)
		y, _ := xy[1].(float64)
		state.Color = &domain.Color{X: x, Y: y}
	}
	return state, nil
}

func (c *Client) GetEntity(ctx context.Context, id string) (Entity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/states/"+id, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("fetching state of %s: %w", id, err)
	}

	var entity Entity
	if err := json.Unmarshal(resp, &entity); err != nil {
		return Entity{}, fmt.Errorf("parsing state: %w", err)
	}
	return entity, nil
}

// GetLights lists every light.* entity.
func (c *Client) GetLights(ctx context.Context) ([]Entity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching states: %w", err)
	}

	var entities []Entity
	if err := json.Unmarshal(resp, &entities); err != nil {
		return nil, fmt.Errorf("parsing states: %w", err)
	}

	lights := make([]Entity, 0)
	for _, e := range entities {
		if strings.HasPrefix(e.EntityID, "light.") {
			lights = append(lights, e)
		}
	}
	return lights, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return infra.Permanent(fmt.Errorf("unauthorized: check your Home Assistant token"))
		case resp.StatusCode == http.StatusNotFound:
			return infra.Permanent(fmt.Errorf("%w: %s", ErrEntityNotFound, path))
		case infra.IsRetryableHTTPStatus(resp.StatusCode):
			return fmt.Errorf("home assistant API error %d (retryable): %s", resp.StatusCode, string(respBody))
		case resp.StatusCode >= 400:
			return infra.Permanent(fmt.Errorf("home assistant API error %d: %s", resp.StatusCode, string(respBody)))
		}

		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return respBody, nil
}
