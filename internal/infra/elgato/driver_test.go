package elgato_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"vocalights/internal/domain"
	"vocalights/internal/infra/elgato"
	"vocalights/internal/lighting"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeKeyLight struct {
	mu      sync.Mutex
	puts    []map[string]any
	lights  string
	failing bool
}

func (f *fakeKeyLight) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.failing {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if r.URL.Path != "/elgato/lights" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.lights)
	case http.MethodPut:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.puts = append(f.puts, body)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.lights)
	}
}

func (f *fakeKeyLight) lastLight(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		t.Fatal("no PUT received")
	}
	lights, ok := f.puts[len(f.puts)-1]["lights"].([]any)
	if !ok || len(lights) != 1 {
		t.Fatalf("unexpected body: %v", f.puts[len(f.puts)-1])
	}
	return lights[0].(map[string]any)
}

const oneLight = `{"numberOfLights":1,"lights":[{"on":0,"brightness":20,"temperature":213}]}`

func TestDriver_ApplyBrightness(t *testing.T) {
	fake := &fakeKeyLight{lights: oneLight}
	server := httptest.NewServer(fake)
	defer server.Close()

	driver := elgato.NewDriver(discardLogger())

	statuses, err := driver.Apply(context.Background(), []string{server.URL}, domain.BrightnessSet(250, 0))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].OK {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}

	l := fake.lastLight(t)
	if l["brightness"] != float64(100) {
		t.Errorf("brightness should be clamped to 100, got %v", l["brightness"])
	}
	if l["on"] != float64(1) {
		t.Errorf("dimming should switch the light on, got %v", l["on"])
	}
}

func TestDriver_ApplyFailureIsPerDevice(t *testing.T) {
	good := &fakeKeyLight{lights: oneLight}
	bad := &fakeKeyLight{failing: true}
	goodServer := httptest.NewServer(good)
	defer goodServer.Close()
	badServer := httptest.NewServer(bad)
	defer badServer.Close()

	driver := elgato.NewDriver(discardLogger())

	statuses, err := driver.Apply(context.Background(), []string{badServer.URL, goodServer.URL}, domain.PowerSet(true))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if statuses[0].OK || !statuses[1].OK {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}

func TestDriver_ColorUnsupported(t *testing.T) {
	driver := elgato.NewDriver(discardLogger())

	red, _ := lighting.LookupColor("red")
	_, err := driver.Apply(context.Background(), []string{"127.0.0.1"}, domain.ColorSet(red, 0))
	if !errors.Is(err, lighting.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
