package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/micro-ha/zyxel-ap/addon/internal/aggregator"
	"github.com/micro-ha/zyxel-ap/addon/internal/configsync"
	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/storage"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

type fakeAP struct {
	snapshot   *zyxel.Snapshot
	fetchErr   error
	radioSlot  int
	radioOn    *bool
	guestOn    *bool
	reboots    int
	controlErr error
}

func (f *fakeAP) FetchSnapshot(_ context.Context, _ model.APConfig) (*zyxel.Snapshot, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot, nil
}

func (f *fakeAP) SetRadio(_ context.Context, _ model.APConfig, slot int, active bool) error {
	f.radioSlot = slot
	f.radioOn = &active
	return f.controlErr
}

func (f *fakeAP) SetGuestSchedule(_ context.Context, _ model.APConfig, alwaysOn bool) error {
	f.guestOn = &alwaysOn
	return f.controlErr
}

func (f *fakeAP) Reboot(_ context.Context, _ model.APConfig) error {
	f.reboots++
	return f.controlErr
}

type stubOUI struct{}

func (stubOUI) Lookup(string) string { return "Vendor" }

func TestPersistObservations_RemovesUnregisteredWhenGone(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, ctx)
	now := time.Now().UTC().Add(-1 * time.Minute)
	mac := "AA:BB:CC:DD:EE:01"

	if err := repo.UpsertStates(ctx, []model.ClientState{{
		MAC:       mac,
		Online:    true,
		UpdatedAt: now,
	}}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	svc := &Service{repo: repo}
	if err := svc.persistObservations(ctx, map[string]model.ClientObservation{}); err != nil {
		t.Fatalf("persist observations: %v", err)
	}

	states, err := repo.LoadAllStates(ctx)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected 0 states, got %d", len(states))
	}
}

func TestPersistObservations_KeepsRegisteredOffline(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, ctx)
	now := time.Now().UTC().Add(-1 * time.Minute)
	mac := "AA:BB:CC:DD:EE:03"

	started := now.Add(-10 * time.Minute)
	if err := repo.UpsertStates(ctx, []model.ClientState{{
		MAC:              mac,
		Online:           true,
		ConnectedSinceAt: &started,
		UpdatedAt:        now,
	}}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	if err := repo.UpsertRegistered(ctx, mac, nil, nil, nil); err != nil {
		t.Fatalf("seed registered: %v", err)
	}

	svc := &Service{repo: repo}
	if err := svc.persistObservations(ctx, map[string]model.ClientObservation{}); err != nil {
		t.Fatalf("persist observations: %v", err)
	}

	states, err := repo.LoadAllStates(ctx)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	state, ok := states[mac]
	if !ok {
		t.Fatalf("expected state for %s", mac)
	}
	if state.Online {
		t.Fatalf("expected registered client to become offline")
	}
	if state.ConnectedSinceAt != nil {
		t.Fatalf("expected connected-since to clear on disconnect")
	}
}

func TestPersistObservations_TracksConnectionStart(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, ctx)
	mac := "AA:BB:CC:DD:EE:05"
	now := time.Now().UTC()

	svc := &Service{repo: repo}
	observed := map[string]model.ClientObservation{
		mac: {
			MAC:        mac,
			IP:         "192.168.1.50",
			SSID:       "Home",
			Band:       model.Band5GHz,
			RSSIdBm:    -52,
			Vendor:     "Vendor",
			Generated:  "Vendor-EE05",
			ObservedAt: now,
		},
	}
	if err := svc.persistObservations(ctx, observed); err != nil {
		t.Fatalf("persist observations: %v", err)
	}

	states, err := repo.LoadAllStates(ctx)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	state, ok := states[mac]
	if !ok {
		t.Fatalf("expected state for %s", mac)
	}
	if !state.Online {
		t.Fatalf("expected online")
	}
	if state.ConnectedSinceAt == nil {
		t.Fatalf("expected connected-since to be set on first sighting")
	}
	if state.LastIP == nil || *state.LastIP != "192.168.1.50" {
		t.Fatalf("last ip = %v", state.LastIP)
	}
	if state.LastBand == nil || *state.LastBand != model.Band5GHz {
		t.Fatalf("last band = %v", state.LastBand)
	}
}

func TestPollOnce_NotConfigured(t *testing.T) {
	ctx := context.Background()
	svc := New(newTestRepo(t, ctx), aggregator.New(stubOUI{}), &fakeAP{}, newTestManager(t, false), testLogger())

	if err := svc.PollOnce(ctx); err != ErrIntegrationNotConfigured {
		t.Fatalf("PollOnce() error = %v, want ErrIntegrationNotConfigured", err)
	}
}

func TestPollOnce_PersistsStationsAndSnapshot(t *testing.T) {
	ctx := context.Background()
	ap := &fakeAP{snapshot: &zyxel.Snapshot{
		FetchedAt: time.Now().UTC(),
		Stations: []zyxel.Station{
			{MAC: "AA:BB:CC:DD:EE:10", Band: "2.4GHz", SSID: "Home"},
			{MAC: "AA:BB:CC:DD:EE:11", Band: "5GHz", SSID: "Home"},
		},
	}}
	svc := New(newTestRepo(t, ctx), aggregator.New(stubOUI{}), ap, newTestManager(t, true), testLogger())

	if err := svc.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce() error: %v", err)
	}

	items, err := svc.ListClients(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(items))
	}

	snapshot, counts, ok := svc.LatestSnapshot()
	if !ok || snapshot == nil {
		t.Fatalf("expected snapshot after poll")
	}
	if counts.Total != 2 || counts.Band24 != 1 || counts.Band5 != 1 {
		t.Fatalf("counts = %+v", counts)
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Configured || status.LastPollAt == nil || status.LastError != "" {
		t.Fatalf("status = %+v", status)
	}

	runs, err := svc.PollRuns(ctx, 10)
	if err != nil {
		t.Fatalf("poll runs: %v", err)
	}
	if len(runs) != 1 || !runs[0].OK || runs[0].StationCount != 2 {
		t.Fatalf("poll runs = %+v", runs)
	}
}

func TestSetGuestSSID_PersistsCommandedState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, ctx)
	ap := &fakeAP{}
	svc := New(repo, aggregator.New(stubOUI{}), ap, newTestManager(t, true), testLogger())

	if err := svc.SetGuestSSID(ctx, true); err != nil {
		t.Fatalf("SetGuestSSID() error: %v", err)
	}
	if ap.guestOn == nil || !*ap.guestOn {
		t.Fatalf("expected guest schedule commanded on")
	}

	on, known, err := svc.GuestSSIDState(ctx)
	if err != nil {
		t.Fatalf("guest state: %v", err)
	}
	if !known || !on {
		t.Fatalf("guest state = on:%v known:%v", on, known)
	}

	if err := svc.SetGuestSSID(ctx, false); err != nil {
		t.Fatalf("SetGuestSSID() error: %v", err)
	}
	on, known, err = svc.GuestSSIDState(ctx)
	if err != nil || !known || on {
		t.Fatalf("guest state after off = on:%v known:%v err:%v", on, known, err)
	}
}

func TestSetRadio_ForwardsSlot(t *testing.T) {
	ctx := context.Background()
	ap := &fakeAP{}
	svc := New(newTestRepo(t, ctx), aggregator.New(stubOUI{}), ap, newTestManager(t, true), testLogger())

	if err := svc.SetRadio(ctx, 2, false); err != nil {
		t.Fatalf("SetRadio() error: %v", err)
	}
	if ap.radioSlot != 2 || ap.radioOn == nil || *ap.radioOn {
		t.Fatalf("radio call = slot:%d on:%v", ap.radioSlot, ap.radioOn)
	}
}

func TestReboot_RequiresConfig(t *testing.T) {
	ctx := context.Background()
	ap := &fakeAP{}
	svc := New(newTestRepo(t, ctx), aggregator.New(stubOUI{}), ap, newTestManager(t, false), testLogger())

	if err := svc.Reboot(ctx); err != ErrIntegrationNotConfigured {
		t.Fatalf("Reboot() error = %v, want ErrIntegrationNotConfigured", err)
	}
	if ap.reboots != 0 {
		t.Fatalf("reboot should not reach the client")
	}
}

func newTestRepo(t *testing.T, ctx context.Context) *storage.Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := storage.New(ctx, dbPath, testLogger())
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestManager(t *testing.T, configured bool) *configsync.Manager {
	t.Helper()
	body := `{"configured": false}`
	if configured {
		body = `{"configured": true, "version": 1, "host": "192.168.1.3", "username": "admin", "password": "x", "poll_interval_sec": 60}`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	manager := configsync.NewManager(configsync.NewClient(server.URL, ""), testLogger())
	if _, err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh manager: %v", err)
	}
	return manager
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
