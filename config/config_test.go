package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vocalights/config"
	"vocalights/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_YAMLWithEnvAndDefaults(t *testing.T) {
	t.Setenv("HA_TOKEN", "secret-token")

	path := writeFile(t, "config.yaml", `
log:
  level: debug
voice:
  source: http
  default_lights: [porch]
homeassistant:
  url: http://ha.local:8123
  token: ${HA_TOKEN}
  lights:
    - name: porch
      entity_id: light.porch
      default_color: warm white
      default_brightness: 50
  tuning:
    disco_delay: 250ms
lifx:
  lights:
    - name: desk
      mac: d0:73:d5:00:00:01
      ip: 192.168.1.20
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.HomeAssistant.Token != "secret-token" {
		t.Errorf("token not expanded: %q", cfg.HomeAssistant.Token)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log: %+v", cfg.Log)
	}
	if cfg.Voice.ExitPhrase != "exit voice" || cfg.Voice.PauseThreshold.Std() != 500*time.Millisecond {
		t.Errorf("voice defaults: %+v", cfg.Voice)
	}
	if len(cfg.Voice.DefaultLights) != 1 || cfg.Voice.DefaultLights[0] != "porch" {
		t.Errorf("default lights: %v", cfg.Voice.DefaultLights)
	}
	if cfg.Shutdown.Action != "restore" || cfg.Shutdown.Timeout.Std() != 5*time.Second {
		t.Errorf("shutdown defaults: %+v", cfg.Shutdown)
	}

	ha := cfg.HomeAssistant
	if err := ha.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if ha.Lights[0].Color != "warm white" || *ha.Lights[0].Brightness != 50 {
		t.Errorf("inline defaults not decoded: %+v", ha.Lights[0])
	}

	profile, err := ha.Tuning.Profile(domain.BackendHomeAssistant)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.DiscoDelay != 250*time.Millisecond {
		t.Errorf("disco delay: got %v", profile.DiscoDelay)
	}
	if profile.MaxBrightness != 255 || profile.FlickerDelay != 300*time.Millisecond {
		t.Errorf("untouched fields should keep defaults: %+v", profile)
	}

	if !cfg.LIFX.Enabled() || cfg.Hue.Enabled() {
		t.Errorf("enabled: lifx=%v hue=%v", cfg.LIFX.Enabled(), cfg.Hue.Enabled())
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[voice]
source = "mqtt"

[mqtt]
broker = "tcp://localhost:1883"

[elgato]
[[elgato.lights]]
name = "key"
address = "192.168.1.40"
default_brightness = 30

[elgato.tuning]
flicker_delay = "50ms"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Voice.Source != "mqtt" || cfg.MQTT.CommandTopic != "vocalights/command" {
		t.Errorf("voice/mqtt: %+v %+v", cfg.Voice, cfg.MQTT)
	}
	if len(cfg.Elgato.Lights) != 1 || cfg.Elgato.Lights[0].Address != "192.168.1.40" {
		t.Fatalf("elgato lights: %+v", cfg.Elgato.Lights)
	}
	if b := cfg.Elgato.Lights[0].Brightness; b == nil || *b != 30 {
		t.Errorf("default_brightness: %v", b)
	}

	profile, err := cfg.Elgato.Tuning.Profile(domain.BackendElgato)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.FlickerDelay != 50*time.Millisecond {
		t.Errorf("flicker delay: got %v", profile.FlickerDelay)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeFile(t, "config.yaml", "voice:\n  pause_threshold: soon\n")

	if _, err := config.Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "hue without bridge",
			err:     config.HueConfig{Username: "u", Lights: []config.HueLight{{Name: "a", ID: "1"}}}.Validate(),
			wantMsg: "bridge_ip",
		},
		{
			name:    "home assistant non-light entity",
			err:     config.HomeAssistantConfig{URL: "http://ha", Token: "t", Lights: []config.HomeAssistantLight{{Name: "fan", EntityID: "switch.fan"}}}.Validate(),
			wantMsg: "not a light",
		},
		{
			name:    "tuya missing credentials",
			err:     config.TuyaConfig{Lights: []config.TuyaLight{{Name: "a"}}}.Validate(),
			wantMsg: "client_id",
		},
		{
			name:    "lifx missing mac",
			err:     config.LIFXConfig{Lights: []config.LIFXLight{{Name: "a"}}}.Validate(),
			wantMsg: "mac",
		},
		{
			name: "elgato color",
			err: config.ElgatoConfig{Lights: []config.ElgatoLight{{
				Name: "key", Address: "host", LightDefaults: config.LightDefaults{Color: "red"},
			}}}.Validate(),
			wantMsg: "no color",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil || !strings.Contains(tt.err.Error(), tt.wantMsg) {
				t.Errorf("got %v, want error containing %q", tt.err, tt.wantMsg)
			}
		})
	}

	ok := config.HueConfig{Username: "u", Discover: true, Lights: []config.HueLight{{Name: "a", ID: "1"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("discover should replace bridge_ip: %v", err)
	}
}

func TestTuningProfile_Bounds(t *testing.T) {
	low := 300
	_, err := config.Tuning{MinBrightness: &low}.Profile(domain.BackendHue)
	if err == nil {
		t.Error("min above max should fail")
	}

	zero := 0
	_, err = config.Tuning{MaxBrightness: &zero}.Profile(domain.BackendLIFX)
	if err == nil {
		t.Error("zero max should fail")
	}
}

func TestLightDefaults_Resolve(t *testing.T) {
	profile, _ := config.Tuning{}.Profile(domain.BackendLIFX)

	half := 50
	d, err := config.LightDefaults{Color: "blue", Brightness: &half}.Resolve(profile)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Color == nil || d.Color.Name != "blue" || d.Brightness != 32500 {
		t.Errorf("unexpected defaults: %+v", d)
	}

	if _, err := (config.LightDefaults{Color: "plaid"}).Resolve(profile); err == nil {
		t.Error("unknown color should fail")
	}

	over := 150
	if _, err := (config.LightDefaults{Brightness: &over}).Resolve(profile); err == nil {
		t.Error("brightness over 100 should fail")
	}
}
