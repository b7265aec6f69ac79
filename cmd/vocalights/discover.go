package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vocalights/config"
	"vocalights/internal/infra/discovery"
	"vocalights/internal/infra/elgato"
	"vocalights/internal/infra/homeassistant"
	"vocalights/internal/infra/hue"
	"vocalights/internal/infra/lifx"
	"vocalights/internal/infra/tuya"
)

func newDiscoverCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List lights that can be added to the config",
		Long:  "discover broadcasts for LIFX bulbs, browses mDNS for Hue bridges and\nElgato Key Lights, and lists the lights of any Hue bridge, Home Assistant\ninstance or Tuya project already present in the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &config.Config{}
			if _, err := os.Stat(opts.configPath); err == nil {
				loaded, err := config.Load(opts.configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logger := setupLogger(cfg.Log, os.Stderr)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			discoverLIFX(ctx, out, timeout, logger)
			discoverHue(ctx, out, cfg.Hue, timeout, logger)
			discoverElgato(ctx, out, timeout, logger)
			listHomeAssistant(ctx, out, cfg.HomeAssistant, logger)
			listTuya(ctx, out, cfg.Tuya, logger)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "how long to wait for answers from each protocol")
	return cmd
}

func discoverLIFX(ctx context.Context, out io.Writer, timeout time.Duration, logger *slog.Logger) {
	fmt.Fprintln(out, "LIFX bulbs:")
	bulbs, err := lifx.Discover(ctx, timeout)
	if err != nil {
		logger.Warn("lifx discovery", "error", err)
	}
	for _, b := range bulbs {
		fmt.Fprintf(out, "  - name: %q\n    mac: %s\n    # %s\n", b.Label, b.MAC, b.Addr)
	}
	if len(bulbs) == 0 {
		fmt.Fprintln(out, "  none found")
	}
}

func discoverHue(ctx context.Context, out io.Writer, cfg config.HueConfig, timeout time.Duration, logger *slog.Logger) {
	fmt.Fprintln(out, "Hue bridges:")
	bridges, err := discovery.Browse(ctx, discovery.HueService, timeout, logger)
	if err != nil {
		logger.Warn("hue discovery", "error", err)
	}
	for _, b := range bridges {
		fmt.Fprintf(out, "  bridge_ip: %s  # %s\n", b.Addr, b.Name)
	}
	if len(bridges) == 0 {
		fmt.Fprintln(out, "  none found")
	}

	if cfg.Username == "" {
		return
	}
	host := cfg.BridgeIP
	if host == "" && len(bridges) > 0 {
		host = bridges[0].Addr
	}
	if host == "" {
		return
	}

	driver, err := hue.NewDriver(host, cfg.Username, logger)
	if err != nil {
		logger.Warn("hue client", "error", err)
		return
	}
	lights, err := driver.Lights(ctx)
	if err != nil {
		logger.Warn("listing hue lights", "bridge", host, "error", err)
		return
	}
	fmt.Fprintf(out, "Hue lights on %s:\n", host)
	for _, l := range lights {
		fmt.Fprintf(out, "  - name: %q\n    id: %s\n", l.Name, l.ID)
	}
}

func discoverElgato(ctx context.Context, out io.Writer, timeout time.Duration, logger *slog.Logger) {
	fmt.Fprintln(out, "Elgato Key Lights:")
	services, err := discovery.Browse(ctx, discovery.ElgatoService, timeout, logger)
	if err != nil {
		logger.Warn("elgato discovery", "error", err)
	}

	driver := elgato.NewDriver(logger)
	for _, s := range services {
		name := s.Name
		if desc, err := driver.Describe(ctx, s.HostPort()); err == nil && desc != "" {
			name = desc
		}
		fmt.Fprintf(out, "  - name: %q\n    address: %s\n", name, s.HostPort())
	}
	if len(services) == 0 {
		fmt.Fprintln(out, "  none found")
	}
}

func listHomeAssistant(ctx context.Context, out io.Writer, cfg config.HomeAssistantConfig, logger *slog.Logger) {
	if cfg.URL == "" || cfg.Token == "" {
		return
	}
	client := homeassistant.NewClient(cfg.URL, cfg.Token, logger)
	lights, err := client.GetLights(ctx)
	if err != nil {
		logger.Warn("listing home assistant lights", "error", err)
		return
	}
	fmt.Fprintln(out, "Home Assistant lights:")
	for _, e := range lights {
		fmt.Fprintf(out, "  - name: %q\n    entity_id: %s\n", e.FriendlyName(), e.EntityID)
	}
}

func listTuya(ctx context.Context, out io.Writer, cfg config.TuyaConfig, logger *slog.Logger) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return
	}
	registry := tuya.NewRegistry(tuya.NewClient(cfg.ClientID, cfg.Secret, cfg.Region, logger), logger)
	if err := registry.Sync(ctx); err != nil {
		logger.Warn("listing tuya lights", "error", err)
		return
	}
	fmt.Fprintln(out, "Tuya lights:")
	for _, d := range registry.Lights() {
		fmt.Fprintf(out, "  - name: %q\n    device_id: %s  # online=%v\n", d.Name, d.ID, d.Online)
	}
}
