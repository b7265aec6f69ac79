package hue

import (
	"errors"
	"testing"

	"vocalights/internal/domain"
	"vocalights/internal/lighting"
)

func TestBrightnessConversion(t *testing.T) {
	tests := []struct {
		native int
		pct    float32
	}{
		{0, 0},
		{127, 50},
		{254, 100},
		{300, 100},
		{-1, 0},
	}

	for _, tt := range tests {
		if got := toPercent(tt.native); float32(got) != tt.pct {
			t.Errorf("toPercent(%d) = %v, want %v", tt.native, got, tt.pct)
		}
	}

	if got := fromPercent(50); got != 127 {
		t.Errorf("fromPercent(50) = %d, want 127", got)
	}
	if got := fromPercent(100); got != 254 {
		t.Errorf("fromPercent(100) = %d, want 254", got)
	}
}

func TestBuildUpdate(t *testing.T) {
	body, err := buildUpdate(domain.PowerSet(false))
	if err != nil {
		t.Fatalf("power: %v", err)
	}
	if body.On == nil || *body.On.On || body.Dimming != nil {
		t.Errorf("power off body: %+v", body)
	}

	body, err = buildUpdate(domain.BrightnessSet(127, 0))
	if err != nil {
		t.Fatalf("brightness: %v", err)
	}
	if body.Dimming == nil || float32(*body.Dimming.Brightness) != 50 || body.On != nil {
		t.Errorf("brightness body: %+v", body)
	}

	blue, _ := lighting.LookupColor("blue")
	body, err = buildUpdate(domain.ColorSet(blue, 0))
	if err != nil {
		t.Fatalf("color: %v", err)
	}
	if body.Color == nil || float64(*body.Color.Xy.X) != float64(float32(blue.X)) {
		t.Errorf("color body: %+v", body.Color)
	}

	_, err = buildUpdate(domain.Command{Kind: domain.CommandEffectStop})
	if !errors.Is(err, lighting.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestBridgeURL(t *testing.T) {
	if got := bridgeURL("192.168.1.2"); got != "https://192.168.1.2" {
		t.Errorf("bridgeURL: got %s", got)
	}
	if got := bridgeURL("http://localhost:8080"); got != "http://localhost:8080" {
		t.Errorf("bridgeURL: got %s", got)
	}
}
