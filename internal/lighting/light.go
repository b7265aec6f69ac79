package lighting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vocalights/internal/domain"
)

// Backend bundles one device family's registry and driver.
type Backend struct {
	Name     domain.Backend
	Profile  Profile
	Registry *Registry
	Driver   Driver
}

func NewBackend(name domain.Backend, profile Profile, driver Driver) *Backend {
	return &Backend{
		Name:     name,
		Profile:  profile,
		Registry: BuildRegistry(profile),
		Driver:   driver,
	}
}

// Light is a configured device bound to its backend.
type Light struct {
	domain.Device
	backend *Backend
	match   string
}

func NewLight(device domain.Device, backend *Backend) *Light {
	return &Light{
		Device:  device,
		backend: backend,
		match:   strings.ToLower(strings.TrimSpace(device.Name)),
	}
}

func (l *Light) Backend() *Backend {
	return l.backend
}

// Mentioned reports whether the light's name occurs in a lower-case phrase.
func (l *Light) Mentioned(phrase string) bool {
	return l.match != "" && strings.Contains(phrase, l.match)
}

// Apply sends cmd to this light only.
func (l *Light) Apply(ctx context.Context, cmd domain.Command) error {
	statuses, err := l.backend.Driver.Apply(ctx, []string{l.Address}, cmd)
	if err != nil {
		return err
	}
	return statusError(statuses)
}

// Defaults is the state a light is put into at startup and on reset.
type Defaults struct {
	Color      *domain.Color
	Brightness int
}

// ApplyDefaults sets the default color and brightness. Lights that are off
// must be powered on to be altered, so they are switched on first and back
// off afterwards.
func ApplyDefaults(ctx context.Context, l *Light, d Defaults, logger *slog.Logger) error {
	state, err := l.backend.Driver.State(ctx, l.Address)
	if err != nil {
		return fmt.Errorf("reading state of %s: %w", l.Name, err)
	}

	var cmds []domain.Command
	if !state.On {
		cmds = append(cmds, domain.PowerSet(true))
	}
	if d.Color != nil && l.backend.Profile.SupportsColor() {
		cmds = append(cmds, domain.ColorSet(*d.Color, 0))
	}
	if d.Brightness > 0 {
		cmds = append(cmds, domain.BrightnessSet(d.Brightness, 0))
	}
	if !state.On {
		cmds = append(cmds, domain.PowerSet(false))
	}

	for _, cmd := range cmds {
		if err := l.Apply(ctx, cmd); err != nil {
			return fmt.Errorf("applying %s to %s: %w", cmd, l.Name, err)
		}
	}

	logger.Debug("defaults applied", "light", l.Name, "was_on", state.On, "commands", len(cmds))
	return nil
}
