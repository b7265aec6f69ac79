package lifx

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"go.yhsif.com/lifxlan"
	"go.yhsif.com/lifxlan/light"
	"go.yhsif.com/lifxlan/mock"

	"vocalights/internal/domain"
)

func TestWithBrightness(t *testing.T) {
	base := lifxlan.Color{Hue: 43634, Saturation: 65535, Brightness: 100, Kelvin: 3500}

	tests := []struct {
		level int
		want  uint16
	}{
		{32500, 32500},
		{-5, 0},
		{70000, 65535},
	}

	for _, tt := range tests {
		got := withBrightness(base, tt.level)
		if got.Brightness != tt.want {
			t.Errorf("withBrightness(%d) = %d, want %d", tt.level, got.Brightness, tt.want)
		}
		if got.Hue != base.Hue || got.Saturation != base.Saturation || got.Kelvin != base.Kelvin {
			t.Errorf("withBrightness(%d) changed other channels: %+v", tt.level, got)
		}
	}
}

func TestColorRoundTrip(t *testing.T) {
	c := domain.Color{Hue: 6500, Saturation: 65535, Brightness: 65535, Kelvin: 3500}
	if got := fromLIFXColor(toLIFXColor(c)); got != c {
		t.Errorf("round trip: got %+v, want %+v", got, c)
	}
}

func TestNewDriver_RejectsBadMAC(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewDriver([]Bulb{{MAC: "not-a-mac"}}, logger); err == nil {
		t.Error("expected error for invalid mac")
	}

	d, err := NewDriver([]Bulb{{MAC: " D0:73:D5:00:00:01 ", IP: "192.168.1.20"}}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.bulbs["d0:73:d5:00:00:01"]; !ok {
		t.Error("mac should be normalized")
	}
}

// newMockDriver returns a driver whose only bulb is served by a mock device
// on localhost.
func newMockDriver(t *testing.T) (*Driver, *mock.Service, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	var label lifxlan.Label
	label.Set("desk")

	service, device := mock.StartService(t)
	service.RawStatePayload = &light.RawStatePayload{
		Color: lifxlan.Color{Hue: 100, Saturation: 200, Brightness: 300, Kelvin: 3500},
		Label: label,
	}
	service.RawStatePowerPayload = &lifxlan.RawStatePowerPayload{Level: lifxlan.PowerOn}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ld, err := light.Wrap(ctx, device, false)
	if err != nil {
		t.Fatal(err)
	}

	mac := mock.Target.String()
	d, err := NewDriver([]Bulb{{MAC: mac, IP: "127.0.0.1"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	d.timeout = 300 * time.Millisecond
	d.lights[mac] = ld
	return d, service, mac
}

func TestDriver_ApplySetsColor(t *testing.T) {
	d, service, mac := newMockDriver(t)

	got := make(chan lifxlan.Color, 1)
	service.Handlers[light.SetColor] = func(_ *mock.Service, _ net.PacketConn, _ net.Addr, orig *lifxlan.Response) {
		var raw light.RawSetColorPayload
		if err := binary.Read(bytes.NewReader(orig.Payload), binary.LittleEndian, &raw); err != nil {
			t.Error(err)
			return
		}
		got <- raw.Color
	}

	statuses, err := d.Apply(context.Background(), []string{mac}, domain.BrightnessSet(40000, 0))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].OK {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}

	select {
	case c := <-got:
		if c.Brightness != 40000 || c.Hue != 100 {
			t.Errorf("brightness change should keep hue: %+v", c)
		}
	default:
		t.Error("bulb never received SetColor")
	}
}

func TestDriver_ApplyDroppedAckFailsBulb(t *testing.T) {
	d, service, mac := newMockDriver(t)
	service.AcksToDrop = 1

	done := make(chan []domain.Status, 1)
	go func() {
		statuses, _ := d.Apply(context.Background(), []string{mac}, domain.PowerSet(false))
		done <- statuses
	}()

	select {
	case statuses := <-done:
		if len(statuses) != 1 || statuses[0].OK {
			t.Errorf("dropped ack should fail the bulb: %+v", statuses)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Apply blocked on a dropped ack")
	}
}

func TestDriver_State(t *testing.T) {
	d, _, mac := newMockDriver(t)

	state, err := d.State(context.Background(), mac)
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if !state.On || state.Brightness != 300 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Color == nil || state.Color.Hue != 100 || state.Color.Kelvin != 3500 {
		t.Errorf("unexpected color: %+v", state.Color)
	}
}

func TestRemoteAddr(t *testing.T) {
	_, device := mock.StartService(t)

	addr := remoteAddr(device)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("remoteAddr returned %q: %v", addr, err)
	}
	if host != "127.0.0.1" || port == "" || port == "0" {
		t.Errorf("remoteAddr: got %q", addr)
	}
}
