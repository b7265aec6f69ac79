package domain

type Backend string

const (
	BackendLIFX          Backend = "lifx"
	BackendHue           Backend = "hue"
	BackendHomeAssistant Backend = "homeassistant"
	BackendTuya          Backend = "tuya"
	BackendElgato        Backend = "elgato"
)

// Device is a configured light. Address is backend specific: a MAC for
// LIFX, a light resource id for Hue, an entity id for Home Assistant, a
// device id for Tuya and a host for Elgato.
type Device struct {
	Name    string
	Backend Backend
	Address string
}

type DeviceState struct {
	On         bool
	Brightness int
	Color      *Color
}

// Color carries every representation a backend may need. LIFX-style HSBK
// values use the full 16-bit range; X and Y are CIE 1931 coordinates used by
// bridges.
type Color struct {
	Name       string
	Hue        uint16
	Saturation uint16
	Brightness uint16
	Kelvin     uint16
	X          float64
	Y          float64
}

// HSV returns hue in degrees and saturation/value in [0, 1].
func (c Color) HSV() (h, s, v float64) {
	return float64(c.Hue) / 65535 * 360, float64(c.Saturation) / 65535, float64(c.Brightness) / 65535
}

// Status is the per-device outcome of one driver call.
type Status struct {
	ID     string
	OK     bool
	Detail string
}

func StatusOK(id string) Status {
	return Status{ID: id, OK: true}
}

func StatusError(id string, err error) Status {
	return Status{ID: id, Detail: err.Error()}
}
