package lighting

import (
	"time"

	"vocalights/internal/domain"
)

// Profile holds the tuning a backend's command registry is built from.
// Brightness values are in the backend's native units. A nil Palette means
// the backend cannot change color.
type Profile struct {
	MinBrightness     int
	MaxBrightness     int
	DefaultBrightness int
	BrightnessRate    time.Duration
	ColorRate         time.Duration
	FlashDelay        time.Duration
	ColoramaDelay     time.Duration
	DiscoDelay        time.Duration
	FlickerDelay      time.Duration
	Palette           []domain.Color
}

func (p Profile) SupportsColor() bool {
	return len(p.Palette) > 0
}

// DefaultProfile returns the documented defaults for a backend.
func DefaultProfile(backend domain.Backend) Profile {
	switch backend {
	case domain.BackendLIFX:
		return Profile{
			MinBrightness:     16250,
			MaxBrightness:     65000,
			DefaultBrightness: 32500,
			BrightnessRate:    3 * time.Second,
			ColorRate:         3 * time.Second,
			FlashDelay:        3 * time.Second,
			ColoramaDelay:     3 * time.Second,
			DiscoDelay:        100 * time.Millisecond,
			FlickerDelay:      30 * time.Millisecond,
			Palette:           Palette(),
		}
	case domain.BackendHue:
		return Profile{
			MinBrightness:     5,
			MaxBrightness:     254,
			DefaultBrightness: 254,
			FlashDelay:        time.Second,
			ColoramaDelay:     3 * time.Second,
			DiscoDelay:        100 * time.Millisecond,
			FlickerDelay:      30 * time.Millisecond,
			Palette:           Palette(),
		}
	case domain.BackendHomeAssistant:
		return Profile{
			MinBrightness:     5,
			MaxBrightness:     255,
			DefaultBrightness: 255,
			BrightnessRate:    time.Second,
			ColorRate:         time.Second,
			FlashDelay:        time.Second,
			ColoramaDelay:     3 * time.Second,
			DiscoDelay:        500 * time.Millisecond,
			FlickerDelay:      300 * time.Millisecond,
			Palette:           Palette(),
		}
	case domain.BackendTuya:
		return Profile{
			MinBrightness:     10,
			MaxBrightness:     1000,
			DefaultBrightness: 1000,
			FlashDelay:        time.Second,
			ColoramaDelay:     3 * time.Second,
			DiscoDelay:        500 * time.Millisecond,
			FlickerDelay:      300 * time.Millisecond,
			Palette:           Palette(),
		}
	case domain.BackendElgato:
		return Profile{
			MinBrightness:     3,
			MaxBrightness:     100,
			DefaultBrightness: 50,
			FlashDelay:        time.Second,
			FlickerDelay:      100 * time.Millisecond,
		}
	default:
		return Profile{MaxBrightness: 100, DefaultBrightness: 100, FlashDelay: time.Second, FlickerDelay: 100 * time.Millisecond}
	}
}
