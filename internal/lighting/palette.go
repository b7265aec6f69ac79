package lighting

import (
	"strings"

	"vocalights/internal/domain"
)

var palette = []domain.Color{
	{Name: "red", Hue: 65535, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 1, Y: 0},
	{Name: "orange", Hue: 6500, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0.55, Y: 0.4},
	{Name: "yellow", Hue: 9000, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0.45, Y: 0.47},
	{Name: "green", Hue: 16173, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0, Y: 1},
	{Name: "cyan", Hue: 29814, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0.196, Y: 0.252},
	{Name: "blue", Hue: 43634, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0, Y: 0},
	{Name: "purple", Hue: 50486, Saturation: 65535, Brightness: 65535, Kelvin: 3500, X: 0.285, Y: 0.202},
	{Name: "pink", Hue: 58275, Saturation: 65535, Brightness: 47142, Kelvin: 3500, X: 0.36, Y: 0.23},
	{Name: "white", Hue: 58275, Saturation: 0, Brightness: 65535, Kelvin: 5500, X: 0.31, Y: 0.316},
	{Name: "gold", Hue: 58275, Saturation: 0, Brightness: 65535, Kelvin: 2500, X: 0.4, Y: 0.35},
}

// Palette returns a copy of the built-in named colors in cycling order.
func Palette() []domain.Color {
	out := make([]domain.Color, len(palette))
	copy(out, palette)
	return out
}

func LookupColor(name string) (domain.Color, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range palette {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Color{}, false
}
