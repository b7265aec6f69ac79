package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vocalights/internal/domain"
	"vocalights/internal/lighting"
)

type Config struct {
	Log           LogConfig           `yaml:"log" toml:"log"`
	Voice         VoiceConfig         `yaml:"voice" toml:"voice"`
	OpenAI        OpenAIConfig        `yaml:"openai" toml:"openai"`
	Pushover      PushoverConfig      `yaml:"pushover" toml:"pushover"`
	MQTT          MQTTConfig          `yaml:"mqtt" toml:"mqtt"`
	Shutdown      ShutdownConfig      `yaml:"shutdown" toml:"shutdown"`
	LIFX          LIFXConfig          `yaml:"lifx" toml:"lifx"`
	Hue           HueConfig           `yaml:"hue" toml:"hue"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant" toml:"homeassistant"`
	Tuya          TuyaConfig          `yaml:"tuya" toml:"tuya"`
	Elgato        ElgatoConfig        `yaml:"elgato" toml:"elgato"`
}

// Duration accepts Go duration strings such as "3s" or "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type VoiceConfig struct {
	Source         string   `yaml:"source" toml:"source"`
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	AuthToken      string   `yaml:"auth_token" toml:"auth_token"`
	FileDir        string   `yaml:"file_dir" toml:"file_dir"`
	WakeWord       string   `yaml:"wake_word" toml:"wake_word"`
	SampleRate     int      `yaml:"sample_rate" toml:"sample_rate"`
	PauseThreshold Duration `yaml:"pause_threshold" toml:"pause_threshold"`
	ExitPhrase     string   `yaml:"exit_phrase" toml:"exit_phrase"`
	DefaultLights  []string `yaml:"default_lights" toml:"default_lights"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Language string `yaml:"language" toml:"language"`
}

type PushoverConfig struct {
	Token   string `yaml:"token" toml:"token"`
	UserKey string `yaml:"user_key" toml:"user_key"`
	Title   string `yaml:"title" toml:"title"`
	Enabled bool   `yaml:"enabled" toml:"enabled"`
}

type MQTTConfig struct {
	Broker        string `yaml:"broker" toml:"broker"`
	ClientID      string `yaml:"client_id" toml:"client_id"`
	Username      string `yaml:"username" toml:"username"`
	Password      string `yaml:"password" toml:"password"`
	CommandTopic  string `yaml:"command_topic" toml:"command_topic"`
	ResponseTopic string `yaml:"response_topic" toml:"response_topic"`
	QoS           byte   `yaml:"qos" toml:"qos"`
}

// ShutdownConfig controls what happens to the lights when the voice loop
// ends. Action is one of "restore" (reapply light defaults), "off" or "none".
type ShutdownConfig struct {
	Action  string   `yaml:"action" toml:"action"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Tuning overrides a backend's built-in profile. Unset fields keep the
// backend default. Brightness values are in native units.
type Tuning struct {
	MaxBrightness     *int      `yaml:"max_brightness" toml:"max_brightness"`
	MinBrightness     *int      `yaml:"min_brightness" toml:"min_brightness"`
	DefaultBrightness *int      `yaml:"default_brightness" toml:"default_brightness"`
	BrightnessRate    *Duration `yaml:"brightness_rate" toml:"brightness_rate"`
	ColorRate         *Duration `yaml:"color_rate" toml:"color_rate"`
	FlashDelay        *Duration `yaml:"flash_delay" toml:"flash_delay"`
	ColoramaDelay     *Duration `yaml:"colorama_delay" toml:"colorama_delay"`
	DiscoDelay        *Duration `yaml:"disco_delay" toml:"disco_delay"`
	FlickerDelay      *Duration `yaml:"flicker_delay" toml:"flicker_delay"`
}

// Profile returns the backend default profile with t applied on top.
func (t Tuning) Profile(backend domain.Backend) (lighting.Profile, error) {
	p := lighting.DefaultProfile(backend)

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *Duration) {
		if src != nil {
			*dst = src.Std()
		}
	}

	setInt(&p.MaxBrightness, t.MaxBrightness)
	setInt(&p.MinBrightness, t.MinBrightness)
	setInt(&p.DefaultBrightness, t.DefaultBrightness)
	setDur(&p.BrightnessRate, t.BrightnessRate)
	setDur(&p.ColorRate, t.ColorRate)
	setDur(&p.FlashDelay, t.FlashDelay)
	setDur(&p.ColoramaDelay, t.ColoramaDelay)
	setDur(&p.DiscoDelay, t.DiscoDelay)
	setDur(&p.FlickerDelay, t.FlickerDelay)

	switch {
	case p.MaxBrightness <= 0:
		return p, fmt.Errorf("max_brightness must be positive, got %d", p.MaxBrightness)
	case p.MinBrightness < 0 || p.MinBrightness > p.MaxBrightness:
		return p, fmt.Errorf("min_brightness %d outside [0, %d]", p.MinBrightness, p.MaxBrightness)
	case p.DefaultBrightness < p.MinBrightness || p.DefaultBrightness > p.MaxBrightness:
		return p, fmt.Errorf("default_brightness %d outside [%d, %d]", p.DefaultBrightness, p.MinBrightness, p.MaxBrightness)
	}
	return p, nil
}

// LightDefaults is the state a light is put into at startup. Color is a
// palette name; Brightness is a percentage of the backend maximum.
type LightDefaults struct {
	Color      string `yaml:"default_color" toml:"default_color"`
	Brightness *int   `yaml:"default_brightness" toml:"default_brightness"`
}

// Resolve converts the defaults to native units for profile.
func (d LightDefaults) Resolve(profile lighting.Profile) (lighting.Defaults, error) {
	var out lighting.Defaults
	if d.Color != "" {
		c, ok := lighting.LookupColor(d.Color)
		if !ok {
			return out, fmt.Errorf("unknown default_color %q", d.Color)
		}
		out.Color = &c
	}
	if d.Brightness != nil {
		pct := *d.Brightness
		if pct < 1 || pct > 100 {
			return out, fmt.Errorf("default_brightness %d outside [1, 100]", pct)
		}
		out.Brightness = pct * profile.MaxBrightness / 100
	}
	return out, nil
}

func (d LightDefaults) IsZero() bool {
	return d.Color == "" && d.Brightness == nil
}

type LIFXLight struct {
	Name          string `yaml:"name" toml:"name"`
	MAC           string `yaml:"mac" toml:"mac"`
	IP            string `yaml:"ip" toml:"ip"`
	LightDefaults `yaml:",inline"`
}

type LIFXConfig struct {
	Lights []LIFXLight `yaml:"lights" toml:"lights"`
	Tuning Tuning      `yaml:"tuning" toml:"tuning"`
}

func (c LIFXConfig) Enabled() bool { return len(c.Lights) > 0 }

func (c LIFXConfig) Validate() error {
	var errs []error
	for i, l := range c.Lights {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("lifx.lights[%d]: name is required", i))
		}
		if l.MAC == "" {
			errs = append(errs, fmt.Errorf("lifx.lights[%d]: mac is required", i))
		}
	}
	return errors.Join(errs...)
}

type HueLight struct {
	Name          string `yaml:"name" toml:"name"`
	ID            string `yaml:"id" toml:"id"`
	LightDefaults `yaml:",inline"`
}

type HueConfig struct {
	BridgeIP string     `yaml:"bridge_ip" toml:"bridge_ip"`
	Username string     `yaml:"username" toml:"username"`
	Discover bool       `yaml:"discover" toml:"discover"`
	Lights   []HueLight `yaml:"lights" toml:"lights"`
	Tuning   Tuning     `yaml:"tuning" toml:"tuning"`
}

func (c HueConfig) Enabled() bool { return len(c.Lights) > 0 }

func (c HueConfig) Validate() error {
	var errs []error
	if c.Username == "" {
		errs = append(errs, errors.New("hue: username is required"))
	}
	if c.BridgeIP == "" && !c.Discover {
		errs = append(errs, errors.New("hue: bridge_ip is required unless discover is true"))
	}
	for i, l := range c.Lights {
		if l.Name == "" || l.ID == "" {
			errs = append(errs, fmt.Errorf("hue.lights[%d]: name and id are required", i))
		}
	}
	return errors.Join(errs...)
}

type HomeAssistantLight struct {
	Name          string `yaml:"name" toml:"name"`
	EntityID      string `yaml:"entity_id" toml:"entity_id"`
	LightDefaults `yaml:",inline"`
}

type HomeAssistantConfig struct {
	URL    string               `yaml:"url" toml:"url"`
	Token  string               `yaml:"token" toml:"token"`
	Lights []HomeAssistantLight `yaml:"lights" toml:"lights"`
	Tuning Tuning               `yaml:"tuning" toml:"tuning"`
}

func (c HomeAssistantConfig) Enabled() bool { return len(c.Lights) > 0 }

func (c HomeAssistantConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("homeassistant: url is required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("homeassistant: token is required"))
	}
	for i, l := range c.Lights {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("homeassistant.lights[%d]: name is required", i))
		}
		if !strings.HasPrefix(l.EntityID, "light.") {
			errs = append(errs, fmt.Errorf("homeassistant.lights[%d]: entity_id %q is not a light", i, l.EntityID))
		}
	}
	return errors.Join(errs...)
}

// TuyaLight is addressed by DeviceID, or by the device name shown in the
// Tuya app when DeviceID is empty.
type TuyaLight struct {
	Name          string `yaml:"name" toml:"name"`
	DeviceID      string `yaml:"device_id" toml:"device_id"`
	LightDefaults `yaml:",inline"`
}

type TuyaConfig struct {
	ClientID string      `yaml:"client_id" toml:"client_id"`
	Secret   string      `yaml:"secret" toml:"secret"`
	Region   string      `yaml:"region" toml:"region"`
	Lights   []TuyaLight `yaml:"lights" toml:"lights"`
	Tuning   Tuning      `yaml:"tuning" toml:"tuning"`
}

func (c TuyaConfig) Enabled() bool { return len(c.Lights) > 0 }

func (c TuyaConfig) Validate() error {
	var errs []error
	if c.ClientID == "" || c.Secret == "" {
		errs = append(errs, errors.New("tuya: client_id and secret are required"))
	}
	for i, l := range c.Lights {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("tuya.lights[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}

type ElgatoLight struct {
	Name          string `yaml:"name" toml:"name"`
	Address       string `yaml:"address" toml:"address"`
	LightDefaults `yaml:",inline"`
}

type ElgatoConfig struct {
	Lights []ElgatoLight `yaml:"lights" toml:"lights"`
	Tuning Tuning        `yaml:"tuning" toml:"tuning"`
}

func (c ElgatoConfig) Enabled() bool { return len(c.Lights) > 0 }

func (c ElgatoConfig) Validate() error {
	var errs []error
	for i, l := range c.Lights {
		if l.Name == "" || l.Address == "" {
			errs = append(errs, fmt.Errorf("elgato.lights[%d]: name and address are required", i))
		}
		if l.Color != "" {
			errs = append(errs, fmt.Errorf("elgato.lights[%d]: key lights have no color", i))
		}
	}
	return errors.Join(errs...)
}

// Load reads a YAML file, or a TOML file when path ends in .toml.
// Environment variables are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(expanded, &cfg)
	} else {
		err = yaml.Unmarshal(expanded, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Voice.Source == "" {
		c.Voice.Source = "console"
	}
	if c.Voice.HTTPAddr == "" {
		c.Voice.HTTPAddr = ":8080"
	}
	if c.Voice.FileDir == "" {
		c.Voice.FileDir = "./phrases"
	}
	if c.Voice.SampleRate == 0 {
		c.Voice.SampleRate = 16000
	}
	if c.Voice.PauseThreshold == 0 {
		c.Voice.PauseThreshold = Duration(500 * time.Millisecond)
	}
	if c.Voice.ExitPhrase == "" {
		c.Voice.ExitPhrase = "exit voice"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.Pushover.Title == "" {
		c.Pushover.Title = "VocaLights"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "vocalights"
	}
	if c.MQTT.CommandTopic == "" {
		c.MQTT.CommandTopic = "vocalights/command"
	}
	if c.MQTT.ResponseTopic == "" {
		c.MQTT.ResponseTopic = "vocalights/response"
	}
	if c.Shutdown.Action == "" {
		c.Shutdown.Action = "restore"
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = Duration(5 * time.Second)
	}
	if c.Tuya.Region == "" {
		c.Tuya.Region = "us"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
