package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vocalights/config"
	"vocalights/internal/domain"
	"vocalights/internal/infra/elgato"
	"vocalights/internal/infra/homeassistant"
	"vocalights/internal/infra/hue"
	"vocalights/internal/infra/lifx"
	"vocalights/internal/infra/tuya"
	"vocalights/internal/lighting"
)

const bridgeDiscoveryTimeout = 3 * time.Second

var errNoLights = errors.New("no usable lights configured")

// fleet is every light that survived configuration, in config order.
type fleet struct {
	lights   []*lighting.Light
	defaults map[*lighting.Light]lighting.Defaults
	logger   *slog.Logger
}

type lightEntry struct {
	name     string
	address  string
	defaults config.LightDefaults
}

// buildFleet wires each configured backend. A backend that fails validation
// or setup is logged and skipped; the others are kept.
func buildFleet(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*fleet, error) {
	f := &fleet{
		defaults: make(map[*lighting.Light]lighting.Defaults),
		logger:   logger,
	}

	backends := []struct {
		name    domain.Backend
		enabled bool
		build   func() error
	}{
		{domain.BackendLIFX, cfg.LIFX.Enabled(), func() error { return f.addLIFX(cfg.LIFX) }},
		{domain.BackendHue, cfg.Hue.Enabled(), func() error { return f.addHue(ctx, cfg.Hue) }},
		{domain.BackendHomeAssistant, cfg.HomeAssistant.Enabled(), func() error { return f.addHomeAssistant(cfg.HomeAssistant) }},
		{domain.BackendTuya, cfg.Tuya.Enabled(), func() error { return f.addTuya(ctx, cfg.Tuya) }},
		{domain.BackendElgato, cfg.Elgato.Enabled(), func() error { return f.addElgato(cfg.Elgato) }},
	}

	for _, b := range backends {
		if !b.enabled {
			continue
		}
		if err := b.build(); err != nil {
			logger.Warn("skipping backend", "backend", string(b.name), "error", err)
			continue
		}
	}

	if len(f.lights) == 0 {
		return nil, errNoLights
	}

	names := make([]string, 0, len(f.lights))
	for _, l := range f.lights {
		names = append(names, l.Name)
	}
	logger.Info("lights configured", "count", len(f.lights), "lights", strings.Join(names, ", "))
	return f, nil
}

func (f *fleet) add(backend domain.Backend, tuning config.Tuning, driver lighting.Driver, entries []lightEntry) error {
	profile, err := tuning.Profile(backend)
	if err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	defaults := make([]lighting.Defaults, len(entries))
	for i, s := range entries {
		d, err := s.defaults.Resolve(profile)
		if err != nil {
			return fmt.Errorf("light %q: %w", s.name, err)
		}
		defaults[i] = d
	}

	b := lighting.NewBackend(backend, profile, driver)
	for i, s := range entries {
		l := lighting.NewLight(domain.Device{Name: s.name, Backend: backend, Address: s.address}, b)
		f.lights = append(f.lights, l)
		if !s.defaults.IsZero() {
			f.defaults[l] = defaults[i]
		}
	}
	return nil
}

func (f *fleet) addLIFX(cfg config.LIFXConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	bulbs := make([]lifx.Bulb, 0, len(cfg.Lights))
	entries := make([]lightEntry, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		bulbs = append(bulbs, lifx.Bulb{MAC: l.MAC, IP: l.IP})
		entries = append(entries, lightEntry{name: l.Name, address: l.MAC, defaults: l.LightDefaults})
	}

	driver, err := lifx.NewDriver(bulbs, f.logger.With("backend", "lifx"))
	if err != nil {
		return err
	}
	return f.add(domain.BackendLIFX, cfg.Tuning, driver, entries)
}

func (f *fleet) addHue(ctx context.Context, cfg config.HueConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := f.logger.With("backend", "hue")
	host := cfg.BridgeIP
	if host == "" {
		found, err := hue.FindBridge(ctx, bridgeDiscoveryTimeout, logger)
		if err != nil {
			return err
		}
		logger.Info("hue bridge discovered", "bridge", found)
		host = found
	}

	driver, err := hue.NewDriver(host, cfg.Username, logger)
	if err != nil {
		return err
	}

	entries := make([]lightEntry, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		entries = append(entries, lightEntry{name: l.Name, address: l.ID, defaults: l.LightDefaults})
	}
	return f.add(domain.BackendHue, cfg.Tuning, driver, entries)
}

func (f *fleet) addHomeAssistant(cfg config.HomeAssistantConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := homeassistant.NewClient(cfg.URL, cfg.Token, f.logger.With("backend", "homeassistant"))

	entries := make([]lightEntry, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		entries = append(entries, lightEntry{name: l.Name, address: l.EntityID, defaults: l.LightDefaults})
	}
	return f.add(domain.BackendHomeAssistant, cfg.Tuning, client, entries)
}

// addTuya resolves lights configured without a device id by their name in
// the Tuya app. Lights that cannot be resolved are skipped.
func (f *fleet) addTuya(ctx context.Context, cfg config.TuyaConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := f.logger.With("backend", "tuya")
	client := tuya.NewClient(cfg.ClientID, cfg.Secret, cfg.Region, logger)

	var registry *tuya.Registry
	entries := make([]lightEntry, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		id := l.DeviceID
		if id == "" {
			if registry == nil {
				registry = tuya.NewRegistry(client, logger)
				if err := registry.Sync(ctx); err != nil {
					return fmt.Errorf("looking up lights by name: %w", err)
				}
			}
			d, ok := registry.FindByName(l.Name)
			if !ok {
				logger.Warn("tuya light not found, skipping", "name", l.Name)
				continue
			}
			id = d.ID
		}
		entries = append(entries, lightEntry{name: l.Name, address: id, defaults: l.LightDefaults})
	}

	if len(entries) == 0 {
		return errors.New("no tuya lights could be resolved")
	}
	return f.add(domain.BackendTuya, cfg.Tuning, client, entries)
}

func (f *fleet) addElgato(cfg config.ElgatoConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	driver := elgato.NewDriver(f.logger.With("backend", "elgato"))

	entries := make([]lightEntry, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		entries = append(entries, lightEntry{name: l.Name, address: l.Address, defaults: l.LightDefaults})
	}
	return f.add(domain.BackendElgato, cfg.Tuning, driver, entries)
}

// applyDefaults puts every light with configured defaults into its default
// state. Failures are logged per light.
func (f *fleet) applyDefaults(ctx context.Context) {
	for _, l := range f.lights {
		d, ok := f.defaults[l]
		if !ok {
			continue
		}
		if err := lighting.ApplyDefaults(ctx, l, d, f.logger); err != nil {
			f.logger.Warn("applying light defaults", "light", l.Name, "error", err)
		}
	}
}

func (f *fleet) powerOff(ctx context.Context) {
	for _, l := range f.lights {
		if err := l.Apply(ctx, domain.PowerSet(false)); err != nil {
			f.logger.Warn("powering off", "light", l.Name, "error", err)
		}
	}
}

// keywords lists every command keyword known to the configured backends,
// in first-seen order.
func (f *fleet) keywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range f.lights {
		for _, k := range l.Backend().Registry.Keywords() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// shutdownHook stops all effect loops, waits up to cfg.Timeout for them to
// finish, then leaves the lights as cfg.Action says.
func (f *fleet) shutdownHook(effects *lighting.Effects, cfg config.ShutdownConfig) func(ctx context.Context) {
	return func(ctx context.Context) {
		effects.StopAll()

		waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout.Std())
		defer cancel()
		if err := effects.Wait(waitCtx); err != nil {
			f.logger.Warn("effect loops still running at shutdown", "running", effects.Running(), "error", err)
		}

		actionCtx, cancelAction := context.WithTimeout(ctx, cfg.Timeout.Std())
		defer cancelAction()

		switch cfg.Action {
		case "restore":
			f.applyDefaults(actionCtx)
		case "off":
			f.powerOff(actionCtx)
		case "none":
		default:
			f.logger.Warn("unknown shutdown action", "action", cfg.Action)
		}
	}
}
