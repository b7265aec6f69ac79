package tuya

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Registry caches the cloud device list so lights can be configured by name
// instead of device id.
type Registry struct {
	client *Client
	logger *slog.Logger

	mu      sync.RWMutex
	devices []CloudDevice
	byName  map[string]CloudDevice
}

func NewRegistry(client *Client, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger,
		byName: make(map[string]CloudDevice),
	}
}

// Sync refreshes the cache with the lights linked to the cloud project.
func (r *Registry) Sync(ctx context.Context) error {
	r.logger.Info("syncing lights from Tuya")

	devices, err := r.client.GetDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetching devices: %w", err)
	}

	lights := make([]CloudDevice, 0, len(devices))
	byName := make(map[string]CloudDevice, len(devices))
	for _, d := range devices {
		if !d.IsLight() {
			continue
		}
		lights = append(lights, d)
		byName[strings.ToLower(strings.TrimSpace(d.Name))] = d
	}

	r.mu.Lock()
	r.devices = lights
	r.byName = byName
	r.mu.Unlock()

	r.logger.Info("sync complete", "lights", len(lights), "devices", len(devices))
	return nil
}

func (r *Registry) Lights() []CloudDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CloudDevice, len(r.devices))
	copy(out, r.devices)
	return out
}

// FindByName matches case-insensitively on the device name from the Tuya app.
func (r *Registry) FindByName(name string) (CloudDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}
