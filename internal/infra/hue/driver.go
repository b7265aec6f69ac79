package hue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/openhue/openhue-go"

	"vocalights/internal/domain"
	"vocalights/internal/infra/discovery"
	"vocalights/internal/lighting"
)

const maxNative = 254

var ErrNoBridge = errors.New("no hue bridge found")

// Driver controls lights behind one Hue bridge through the CLIP v2 API.
// Addresses are bridge light resource ids.
type Driver struct {
	client *openhue.ClientWithResponses
	bridge string
	logger *slog.Logger
}

// NewDriver connects to the bridge at host. The bridge serves a self-signed
// certificate, so verification is disabled.
func NewDriver(host, appKey string, logger *slog.Logger) (*Driver, error) {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return NewDriverWithClient(bridgeURL(host), appKey, httpClient, logger)
}

func NewDriverWithClient(baseURL, appKey string, httpClient *http.Client, logger *slog.Logger) (*Driver, error) {
	client, err := openhue.NewClientWithResponses(
		baseURL,
		openhue.WithHTTPClient(httpClient),
		openhue.WithRequestEditorFn(func(ctx context.Context, req *http.Request) error {
			req.Header.Set("hue-application-key", appKey)
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hue client for %s: %w", baseURL, err)
	}
	return &Driver{client: client, bridge: baseURL, logger: logger}, nil
}

func bridgeURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// FindBridge returns the address of the first bridge answering on mDNS.
func FindBridge(ctx context.Context, timeout time.Duration, logger *slog.Logger) (string, error) {
	services, err := discovery.Browse(ctx, discovery.HueService, timeout, logger)
	if err != nil && len(services) == 0 {
		return "", fmt.Errorf("browsing for bridges: %w", err)
	}
	if len(services) == 0 {
		return "", ErrNoBridge
	}
	if len(services) > 1 {
		logger.Warn("several hue bridges found, using the first", "count", len(services), "bridge", services[0].Addr)
	}
	return services[0].Addr, nil
}

// Apply updates each light with its own request; the bridge rejects
// individual lights independently.
func (d *Driver) Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	body, err := buildUpdate(cmd)
	if err != nil {
		return nil, err
	}

	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if err := d.update(ctx, id, body); err != nil {
			d.logger.Warn("hue update failed", "light", id, "command", cmd.String(), "error", err)
			statuses = append(statuses, domain.StatusError(id, err))
			continue
		}
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

func (d *Driver) update(ctx context.Context, id string, body openhue.UpdateLightJSONRequestBody) error {
	resp, err := d.client.UpdateLightWithResponse(ctx, id, body)
	if err != nil {
		return fmt.Errorf("updating light %s: %w", id, err)
	}
	if resp.HTTPResponse != nil && resp.HTTPResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned HTTP %d: %s", resp.HTTPResponse.StatusCode, strings.TrimSpace(string(resp.Body)))
	}
	return nil
}

func buildUpdate(cmd domain.Command) (openhue.UpdateLightJSONRequestBody, error) {
	var body openhue.UpdateLightJSONRequestBody

	switch cmd.Kind {
	case domain.CommandPowerSet:
		on := cmd.Power
		body.On = &openhue.On{On: &on}

	case domain.CommandBrightnessSet:
		// Dimming never changes power.
		brightness := toPercent(cmd.Brightness)
		body.Dimming = &openhue.Dimming{Brightness: &brightness}

	case domain.CommandColorSet:
		x := float32(cmd.Color.X)
		y := float32(cmd.Color.Y)
		body.Color = &openhue.Color{Xy: &openhue.GamutPosition{X: &x, Y: &y}}

	default:
		return body, fmt.Errorf("%w: %s", lighting.ErrUnsupported, cmd.Kind)
	}
	return body, nil
}

// toPercent converts a native 0..254 level to the bridge's percentage.
func toPercent(level int) openhue.Brightness {
	switch {
	case level < 0:
		level = 0
	case level > maxNative:
		level = maxNative
	}
	return openhue.Brightness(float32(level) * 100 / maxNative)
}

func fromPercent(pct float32) int {
	return int(math.Round(float64(pct) * maxNative / 100))
}

func (d *Driver) State(ctx context.Context, id string) (domain.DeviceState, error) {
	resp, err := d.client.GetLightWithResponse(ctx, id)
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("fetching light %s: %w", id, err)
	}
	if resp.JSON200 == nil || resp.JSON200.Data == nil || len(*resp.JSON200.Data) == 0 {
		return domain.DeviceState{}, fmt.Errorf("no data for light %s", id)
	}

	l := (*resp.JSON200.Data)[0]
	var state domain.DeviceState
	if l.On != nil && l.On.On != nil {
		state.On = *l.On.On
	}
	if l.Dimming != nil && l.Dimming.Brightness != nil {
		state.Brightness = fromPercent(float32(*l.Dimming.Brightness))
	}
	if l.Color != nil && l.Color.Xy != nil && l.Color.Xy.X != nil && l.Color.Xy.Y != nil {
		state.Color = &domain.Color{X: float64(*l.Color.Xy.X), Y: float64(*l.Color.Xy.Y)}
	}
	return state, nil
}

// Light is a light registered on the bridge.
type Light struct {
	ID   string
	Name string
}

func (d *Driver) Lights(ctx context.Context) ([]Light, error) {
	resp, err := d.client.GetLightsWithResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing lights on %s: %w", d.bridge, err)
	}
	if resp.JSON200 == nil || resp.JSON200.Data == nil {
		return nil, fmt.Errorf("bridge %s returned no light data", d.bridge)
	}

	var lights []Light
	for _, l := range *resp.JSON200.Data {
		if l.Id == nil {
			continue
		}
		light := Light{ID: *l.Id, Name: *l.Id}
		if l.Metadata != nil && l.Metadata.Name != nil {
			light.Name = *l.Metadata.Name
		}
		lights = append(lights, light)
	}
	return lights, nil
}
