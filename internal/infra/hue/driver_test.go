package hue_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"vocalights/internal/domain"
	"vocalights/internal/infra/hue"
)

const lightPath = "/clip/v2/resource/light/"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(t *testing.T, handler http.HandlerFunc) *hue.Driver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	d, err := hue.NewDriverWithClient(server.URL, "app-key", server.Client(), discardLogger())
	if err != nil {
		t.Fatalf("NewDriverWithClient error: %v", err)
	}
	return d
}

func TestDriver_ApplyPerLightStatus(t *testing.T) {
	var mu sync.Mutex
	bodies := make(map[string]map[string]any)

	d := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("hue-application-key") != "app-key" {
			t.Errorf("missing application key")
		}
		if r.Method != http.MethodPut {
			t.Errorf("method: got %s, want PUT", r.Method)
		}
		id := strings.TrimPrefix(r.URL.Path, lightPath)

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies[id] = body
		mu.Unlock()

		if id == "gone" {
			http.Error(w, "resource not available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data":   []map[string]any{{"rid": id, "rtype": "light"}},
			"errors": []any{},
		})
	})

	statuses, err := d.Apply(context.Background(), []string{"desk", "gone"}, domain.BrightnessSet(127, 0))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses: got %d, want 2", len(statuses))
	}
	if !statuses[0].OK {
		t.Errorf("desk should succeed: %+v", statuses[0])
	}
	if statuses[1].OK || !strings.Contains(statuses[1].Detail, "503") {
		t.Errorf("gone should fail with the bridge status: %+v", statuses[1])
	}

	dimming, ok := bodies["desk"]["dimming"].(map[string]any)
	if !ok || dimming["brightness"] != float64(50) {
		t.Errorf("unexpected body: %v", bodies["desk"])
	}
	if _, ok := bodies["desk"]["on"]; ok {
		t.Errorf("brightness change should not touch power: %v", bodies["desk"])
	}
}

func TestDriver_State(t *testing.T) {
	d := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != lightPath+"desk" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[],"data":[{
			"id":"desk","type":"light",
			"on":{"on":true},
			"dimming":{"brightness":50},
			"color":{"xy":{"x":0.15,"y":0.06}}
		}]}`))
	})

	state, err := d.State(context.Background(), "desk")
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if !state.On || state.Brightness != 127 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Color == nil || state.Color.X < 0.149 || state.Color.X > 0.151 {
		t.Errorf("unexpected color: %+v", state.Color)
	}

	if _, err := d.State(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown light")
	}
}
