package configsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchConfigConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/zyxel_ap/config" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"configured": true,
			"version": 7,
			"host": "192.168.1.3",
			"port": 22,
			"username": "admin",
			"password": "secret",
			"poll_interval_sec": 60,
			"guest_profile": "Guest",
			"slot1_profile": "default",
			"slot2_profile": "default2"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")
	got, err := client.FetchConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchConfig() error: %v", err)
	}
	if !got.Configured {
		t.Fatalf("configured = false, want true")
	}
	if got.Config.Host != "192.168.1.3" || got.Config.Username != "admin" {
		t.Fatalf("config = %+v", got.Config)
	}
	if got.Config.Version != 7 {
		t.Fatalf("version = %d", got.Config.Version)
	}
}

func TestFetchConfigNotFoundMeansUnconfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	got, err := client.FetchConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchConfig() error: %v", err)
	}
	if got.Configured {
		t.Fatalf("expected not configured on 404")
	}
}

func TestFetchConfigServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.FetchConfig(context.Background()); err == nil {
		t.Fatal("FetchConfig() error = nil, want non-nil")
	}
}

func TestManagerRefreshTracksVersionChanges(t *testing.T) {
	version := int64(1)
	configured := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !configured {
			_, _ = w.Write([]byte(`{"configured": false}`))
			return
		}
		fmt.Fprintf(w, `{"configured": true, "version": %d, "host": "192.168.1.3", "username": "admin", "password": "x"}`, version)
	}))
	defer server.Close()

	manager := NewManager(NewClient(server.URL, ""), slog.New(slog.NewTextHandler(io.Discard, nil)))

	changed, err := manager.Refresh(context.Background())
	if err != nil || !changed {
		t.Fatalf("first refresh: changed=%v err=%v", changed, err)
	}
	if _, ok := manager.Get(); !ok {
		t.Fatalf("expected configured after refresh")
	}

	changed, err = manager.Refresh(context.Background())
	if err != nil || changed {
		t.Fatalf("same version should not change: changed=%v err=%v", changed, err)
	}

	version = 2
	changed, err = manager.Refresh(context.Background())
	if err != nil || !changed {
		t.Fatalf("version bump should change: changed=%v err=%v", changed, err)
	}

	configured = false
	changed, err = manager.Refresh(context.Background())
	if err != nil || !changed {
		t.Fatalf("unconfigure should change: changed=%v err=%v", changed, err)
	}
	if _, ok := manager.Get(); ok {
		t.Fatalf("expected unconfigured")
	}
}

func TestIsConfigUpdatedEvent(t *testing.T) {
	good := []byte(`{"type":"event","event":{"event_type":"zyxel_ap_config_updated"}}`)
	if !isConfigUpdatedEvent(good) {
		t.Fatalf("expected match")
	}
	other := []byte(`{"type":"event","event":{"event_type":"state_changed"}}`)
	if isConfigUpdatedEvent(other) {
		t.Fatalf("unexpected match")
	}
	if isConfigUpdatedEvent([]byte("{")) {
		t.Fatalf("invalid json should not match")
	}
}
