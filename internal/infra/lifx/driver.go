package lifx

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"go.yhsif.com/lifxlan"
	"go.yhsif.com/lifxlan/light"

	"vocalights/internal/domain"
	"vocalights/internal/lighting"
)

const (
	port            = 56700
	discoverTimeout = 5 * time.Second
	wrapTimeout     = 2 * time.Second
	commandTimeout  = 2 * time.Second
)

// Bulb is a configured LIFX bulb. IP may be empty, in which case the bulb is
// located by broadcast discovery on first use.
type Bulb struct {
	MAC string
	IP  string
}

// Driver controls individually addressed LIFX bulbs over the LAN protocol.
// Addresses are MAC strings.
type Driver struct {
	logger *slog.Logger
	// timeout bounds each exchange with a single bulb.
	timeout time.Duration

	mu     sync.Mutex
	bulbs  map[string]Bulb
	lights map[string]light.Device
}

func NewDriver(bulbs []Bulb, logger *slog.Logger) (*Driver, error) {
	d := &Driver{
		logger:  logger,
		timeout: commandTimeout,
		bulbs:   make(map[string]Bulb, len(bulbs)),
		lights:  make(map[string]light.Device),
	}
	for _, b := range bulbs {
		mac := normalizeMAC(b.MAC)
		if _, err := lifxlan.ParseTarget(mac); err != nil {
			return nil, fmt.Errorf("parsing mac %q: %w", b.MAC, err)
		}
		b.MAC = mac
		d.bulbs[mac] = b
	}
	return d, nil
}

func normalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}

// Apply sends cmd to each bulb in turn. A failing bulb does not stop the
// others.
func (d *Driver) Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if err := d.applyOne(ctx, normalizeMAC(id), cmd); err != nil {
			d.logger.Warn("lifx command failed", "mac", id, "command", cmd.String(), "error", err)
			statuses = append(statuses, domain.StatusError(id, err))
			continue
		}
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

func (d *Driver) applyOne(ctx context.Context, mac string, cmd domain.Command) error {
	ld, err := d.light(ctx, mac)
	if err != nil {
		return err
	}

	conn, err := ld.Dial()
	if err != nil {
		d.forget(mac)
		return fmt.Errorf("dial %s: %w", mac, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch cmd.Kind {
	case domain.CommandPowerSet:
		power := lifxlan.PowerOff
		if cmd.Power {
			power = lifxlan.PowerOn
		}
		return ld.SetLightPower(ctx, conn, power, cmd.Transition, true)

	case domain.CommandColorSet:
		color := toLIFXColor(cmd.Color)
		return ld.SetColor(ctx, conn, &color, cmd.Transition, true)

	case domain.CommandBrightnessSet:
		current, err := ld.GetColor(ctx, conn)
		if err != nil {
			return fmt.Errorf("reading color of %s: %w", mac, err)
		}
		color := withBrightness(*current, cmd.Brightness)
		return ld.SetColor(ctx, conn, &color, cmd.Transition, true)

	default:
		return fmt.Errorf("%w: %s", lighting.ErrUnsupported, cmd.Kind)
	}
}

func (d *Driver) State(ctx context.Context, id string) (domain.DeviceState, error) {
	mac := normalizeMAC(id)
	ld, err := d.light(ctx, mac)
	if err != nil {
		return domain.DeviceState{}, err
	}

	conn, err := ld.Dial()
	if err != nil {
		d.forget(mac)
		return domain.DeviceState{}, fmt.Errorf("dial %s: %w", mac, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	power, err := ld.GetPower(ctx, conn)
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("reading power of %s: %w", mac, err)
	}
	color, err := ld.GetColor(ctx, conn)
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("reading color of %s: %w", mac, err)
	}

	c := fromLIFXColor(*color)
	return domain.DeviceState{
		On:         power.On(),
		Brightness: int(color.Brightness),
		Color:      &c,
	}, nil
}

// light returns the wrapped device for mac, connecting or discovering it on
// first use.
func (d *Driver) light(ctx context.Context, mac string) (light.Device, error) {
	d.mu.Lock()
	ld, ok := d.lights[mac]
	bulb, known := d.bulbs[mac]
	d.mu.Unlock()
	if ok {
		return ld, nil
	}
	if !known {
		return nil, fmt.Errorf("bulb %s is not configured", mac)
	}

	var dev lifxlan.Device
	if bulb.IP != "" {
		target, err := lifxlan.ParseTarget(mac)
		if err != nil {
			return nil, fmt.Errorf("parsing mac %s: %w", mac, err)
		}
		addr := net.JoinHostPort(bulb.IP, fmt.Sprint(port))
		dev = lifxlan.NewDevice(addr, lifxlan.ServiceUDP, target)
	} else {
		found, err := d.locate(ctx, mac)
		if err != nil {
			return nil, err
		}
		dev = found
	}

	wrapCtx, cancel := context.WithTimeout(ctx, wrapTimeout)
	defer cancel()
	ld, err := light.Wrap(wrapCtx, dev, false)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", mac, err)
	}

	d.mu.Lock()
	d.lights[mac] = ld
	d.mu.Unlock()

	d.logger.Debug("lifx bulb connected", "mac", mac, "label", ld.Label().String())
	return ld, nil
}

func (d *Driver) forget(mac string) {
	d.mu.Lock()
	delete(d.lights, mac)
	d.mu.Unlock()
}

func (d *Driver) locate(ctx context.Context, mac string) (lifxlan.Device, error) {
	d.logger.Info("locating lifx bulb by broadcast", "mac", mac)

	discoverCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	ch := make(chan lifxlan.Device)
	go func() {
		_ = lifxlan.Discover(discoverCtx, ch, "")
	}()

	var match lifxlan.Device
	for dev := range ch {
		if match == nil && normalizeMAC(dev.Target().String()) == mac {
			match = dev
			cancel()
		}
	}
	if match == nil {
		return nil, fmt.Errorf("bulb %s not found on the network", mac)
	}
	return match, nil
}

// Found is a bulb seen during discovery.
type Found struct {
	MAC   string
	Label string
	Addr  string
}

// Discover broadcasts on the LAN and returns every bulb that answers within
// timeout.
func Discover(ctx context.Context, timeout time.Duration) ([]Found, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan lifxlan.Device)
	errCh := make(chan error, 1)
	go func() {
		errCh <- lifxlan.Discover(discoverCtx, ch, "")
	}()

	seen := make(map[string]bool)
	var result []Found
	for dev := range ch {
		mac := normalizeMAC(dev.Target().String())
		if seen[mac] {
			continue
		}
		seen[mac] = true

		found := Found{MAC: mac, Addr: remoteAddr(dev)}
		labelCtx, labelCancel := context.WithTimeout(ctx, wrapTimeout)
		if ld, err := light.Wrap(labelCtx, dev, false); err == nil {
			found.Label = ld.Label().String()
		}
		labelCancel()

		result = append(result, found)
	}

	if err := <-errCh; err != nil && ctx.Err() == nil && discoverCtx.Err() == nil {
		return result, fmt.Errorf("lifx discovery: %w", err)
	}
	return result, nil
}

// remoteAddr dials dev to learn its ip:port. Dialing UDP sends nothing.
func remoteAddr(dev lifxlan.Device) string {
	conn, err := dev.Dial()
	if err != nil {
		return ""
	}
	defer conn.Close()
	return conn.RemoteAddr().String()
}

func toLIFXColor(c domain.Color) lifxlan.Color {
	return lifxlan.Color{
		Hue:        c.Hue,
		Saturation: c.Saturation,
		Brightness: c.Brightness,
		Kelvin:     c.Kelvin,
	}
}

func fromLIFXColor(c lifxlan.Color) domain.Color {
	return domain.Color{
		Hue:        c.Hue,
		Saturation: c.Saturation,
		Brightness: c.Brightness,
		Kelvin:     c.Kelvin,
	}
}

// withBrightness keeps hue, saturation and kelvin and replaces brightness,
// clamped to the 16-bit range.
func withBrightness(c lifxlan.Color, level int) lifxlan.Color {
	switch {
	case level < 0:
		level = 0
	case level > 65535:
		level = 65535
	}
	c.Brightness = uint16(level)
	return c
}
