package pushover_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"vocalights/internal/infra/pushover"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Speak(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"message": r.PostForm.Get("message"),
			"title":   r.PostForm.Get("title"),
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("app", "user", "", server.URL, discardLogger())
	if err := client.Speak(context.Background(), "lamp: lights on"); err != nil {
		t.Fatalf("Speak error: %v", err)
	}

	want := map[string]string{"token": "app", "user": "user", "message": "lamp: lights on", "title": "VocaLights"}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("%s: got %q, want %q", k, form[k], v)
		}
	}
}

func TestClient_SpeakSkipsWhenUnconfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("", "user", "", server.URL, discardLogger())
	if err := client.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Speak error: %v", err)
	}

	configured := pushover.NewClientWithURL("app", "user", "", server.URL, discardLogger())
	if err := configured.Speak(context.Background(), "  "); err != nil {
		t.Fatalf("Speak error: %v", err)
	}

	if called {
		t.Error("no request expected")
	}
}

func TestClient_SpeakError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("app", "user", "", server.URL, discardLogger())
	if err := client.Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error")
	}
}
