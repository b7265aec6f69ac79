package homeassistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vocalights/internal/domain"
	"vocalights/internal/infra/homeassistant"
	"vocalights/internal/lighting"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_ApplyBrightness(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token")
		}
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL+"/", "test-token", discardLogger())

	statuses, err := client.Apply(context.Background(), []string{"light.porch"}, domain.BrightnessSet(128, time.Second))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if gotPath != "/api/services/light/turn_on" {
		t.Errorf("path: got %s", gotPath)
	}
	if gotBody["brightness"] != float64(128) {
		t.Errorf("brightness: got %v", gotBody["brightness"])
	}
	if gotBody["transition"] != float64(1) {
		t.Errorf("transition: got %v", gotBody["transition"])
	}
	if len(statuses) != 1 || !statuses[0].OK || statuses[0].ID != "light.porch" {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}

func TestClient_ApplyPowerAndColor(t *testing.T) {
	var paths []string
	var lastBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		lastBody = nil
		json.NewDecoder(r.Body).Decode(&lastBody)
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "test-token", discardLogger())
	ctx := context.Background()

	if _, err := client.Apply(ctx, []string{"light.porch"}, domain.PowerSet(false)); err != nil {
		t.Fatalf("power off: %v", err)
	}

	red, _ := lighting.LookupColor("red")
	if _, err := client.Apply(ctx, []string{"light.porch"}, domain.ColorSet(red, 0)); err != nil {
		t.Fatalf("color: %v", err)
	}

	if paths[0] != "/api/services/light/turn_off" || paths[1] != "/api/services/light/turn_on" {
		t.Errorf("unexpected paths: %v", paths)
	}
	xy, ok := lastBody["xy_color"].([]any)
	if !ok || len(xy) != 2 || xy[0] != float64(1) {
		t.Errorf("xy_color: got %v", lastBody["xy_color"])
	}
	if _, ok := lastBody["transition"]; ok {
		t.Error("zero transition should be omitted")
	}
}

func TestClient_ApplyUnsupported(t *testing.T) {
	client := homeassistant.NewClient("http://127.0.0.1:1", "token", discardLogger())

	_, err := client.Apply(context.Background(), []string{"light.porch"}, domain.Command{Kind: domain.CommandEffectStart})
	if !errors.Is(err, lighting.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestClient_UnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "bad", discardLogger())
	if _, err := client.Apply(context.Background(), []string{"light.porch"}, domain.PowerSet(true)); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls: got %d, want 1", calls.Load())
	}
}

func TestClient_State(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states/light.porch":
			json.NewEncoder(w).Encode(map[string]any{
				"entity_id": "light.porch",
				"state":     "on",
				"attributes": map[string]any{
					"brightness": 200,
					"xy_color":   []float64{0.31, 0.316},
				},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "token", discardLogger())

	state, err := client.State(context.Background(), "light.porch")
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if !state.On || state.Brightness != 200 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Color == nil || state.Color.X != 0.31 {
		t.Errorf("unexpected color: %+v", state.Color)
	}

	_, err = client.State(context.Background(), "light.missing")
	if !errors.Is(err, homeassistant.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestClient_GetLights(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"entity_id": "light.porch", "state": "off", "attributes": map[string]any{"friendly_name": "Porch"}},
			{"entity_id": "switch.fan", "state": "on"},
			{"entity_id": "light.hall", "state": "on"},
		})
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "token", discardLogger())
	lights, err := client.GetLights(context.Background())
	if err != nil {
		t.Fatalf("GetLights error: %v", err)
	}

	if len(lights) != 2 {
		t.Fatalf("lights: got %d, want 2", len(lights))
	}
	if lights[0].FriendlyName() != "Porch" || lights[1].FriendlyName() != "light.hall" {
		t.Errorf("unexpected names: %s, %s", lights[0].FriendlyName(), lights[1].FriendlyName())
	}
}
