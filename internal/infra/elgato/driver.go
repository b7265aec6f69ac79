package elgato

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/mdlayher/keylight"

	"vocalights/internal/domain"
	"vocalights/internal/lighting"
)

const (
	defaultPort   = "9123"
	minBrightness = 3
	maxBrightness = 100
)

// Driver controls Elgato Key Lights over their local HTTP API. Addresses are
// host or host:port strings. Key Lights have no color channel.
type Driver struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*keylight.Client
}

func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		logger:  logger,
		clients: make(map[string]*keylight.Client),
	}
}

func endpoint(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}
	return "http://" + addr
}

func (d *Driver) client(addr string) (*keylight.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[addr]; ok {
		return c, nil
	}
	c, err := keylight.NewClient(endpoint(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("creating key light client for %s: %w", addr, err)
	}
	d.clients[addr] = c
	return c, nil
}

func (d *Driver) Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	if cmd.Kind != domain.CommandPowerSet && cmd.Kind != domain.CommandBrightnessSet {
		return nil, fmt.Errorf("%w: %s", lighting.ErrUnsupported, cmd.Kind)
	}

	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if err := d.applyOne(ctx, id, cmd); err != nil {
			d.logger.Warn("key light command failed", "addr", id, "command", cmd.String(), "error", err)
			statuses = append(statuses, domain.StatusError(id, err))
			continue
		}
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

// applyOne reads the current settings first so temperature is preserved.
func (d *Driver) applyOne(ctx context.Context, addr string, cmd domain.Command) error {
	c, err := d.client(addr)
	if err != nil {
		return err
	}

	lights, err := c.Lights(ctx)
	if err != nil {
		return fmt.Errorf("reading lights: %w", err)
	}
	if len(lights) == 0 {
		return fmt.Errorf("no lights reported by %s", addr)
	}

	for _, l := range lights {
		switch cmd.Kind {
		case domain.CommandPowerSet:
			l.On = cmd.Power
		case domain.CommandBrightnessSet:
			l.On = true
			l.Brightness = clampBrightness(cmd.Brightness)
		}
	}

	if err := c.SetLights(ctx, lights); err != nil {
		return fmt.Errorf("setting lights: %w", err)
	}
	return nil
}

func clampBrightness(level int) int {
	switch {
	case level < minBrightness:
		return minBrightness
	case level > maxBrightness:
		return maxBrightness
	default:
		return level
	}
}

func (d *Driver) State(ctx context.Context, id string) (domain.DeviceState, error) {
	c, err := d.client(id)
	if err != nil {
		return domain.DeviceState{}, err
	}

	lights, err := c.Lights(ctx)
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("reading lights of %s: %w", id, err)
	}
	if len(lights) == 0 {
		return domain.DeviceState{}, fmt.Errorf("no lights reported by %s", id)
	}

	l := lights[0]
	return domain.DeviceState{
		On:         l.On,
		Brightness: l.Brightness,
		Color:      &domain.Color{Kelvin: uint16(l.Temperature)},
	}, nil
}

// Describe returns the accessory's display name, falling back to the
// product name.
func (d *Driver) Describe(ctx context.Context, addr string) (string, error) {
	c, err := d.client(addr)
	if err != nil {
		return "", err
	}
	info, err := c.AccessoryInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("reading accessory info of %s: %w", addr, err)
	}
	if info.DisplayName != "" {
		return info.DisplayName, nil
	}
	return info.ProductName, nil
}
