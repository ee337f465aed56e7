package aggregator

import (
	"testing"
	"time"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

type fakeOUI struct{}

func (fakeOUI) Lookup(_ string) string { return "VendorY" }

type unknownOUI struct{}

func (unknownOUI) Lookup(_ string) string { return "Unknown" }

func TestAggregateStations(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	agg := New(fakeOUI{})

	snap := &zyxel.Snapshot{
		FetchedAt: now,
		Stations: []zyxel.Station{
			{MAC: "AA:BB:CC:DD:EE:FF", IP: "192.168.1.50", SSID: "HomeNet", Band: "5GHz", Slot: 2, RSSIdBm: -54, ConnectedSince: "01:30:00"},
			{MAC: "11:22:33:44:55:66", SSID: "Guest", Band: "2.4G", Slot: 1, RSSIdBm: -71},
		},
	}

	items := agg.Aggregate(snap)
	if len(items) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(items))
	}

	first, ok := items["AA:BB:CC:DD:EE:FF"]
	if !ok {
		t.Fatalf("expected first station")
	}
	if first.Band != model.Band5GHz {
		t.Fatalf("band: got %q", first.Band)
	}
	if first.Vendor != "VendorY" {
		t.Fatalf("vendor: got %q", first.Vendor)
	}
	if first.Generated != "VendorY-EEFF" {
		t.Fatalf("generated name: got %q", first.Generated)
	}
	if first.ConnectedSince == nil {
		t.Fatalf("expected connected since")
	}
	if got := *first.ConnectedSince; !got.Equal(now.Add(-90 * time.Minute)) {
		t.Fatalf("connected since: got %v", got)
	}

	second := items["11:22:33:44:55:66"]
	if second.Band != model.Band24GHz {
		t.Fatalf("band normalization: got %q", second.Band)
	}
	if second.ConnectedSince != nil {
		t.Fatalf("expected nil connected since when field absent")
	}
}

func TestAggregateSkipsEmptyMAC(t *testing.T) {
	agg := New(unknownOUI{})
	snap := &zyxel.Snapshot{
		FetchedAt: time.Now().UTC(),
		Stations:  []zyxel.Station{{IP: "192.168.1.99"}},
	}
	if items := agg.Aggregate(snap); len(items) != 0 {
		t.Fatalf("expected stations without MAC dropped, got %v", items)
	}
}

func TestGeneratedNameUnknownVendor(t *testing.T) {
	agg := New(unknownOUI{})
	snap := &zyxel.Snapshot{
		FetchedAt: time.Now().UTC(),
		Stations:  []zyxel.Station{{MAC: "AA:BB:CC:DD:EE:01"}},
	}
	items := agg.Aggregate(snap)
	if items["AA:BB:CC:DD:EE:01"].Generated != "Client-EE01" {
		t.Fatalf("generated: got %q", items["AA:BB:CC:DD:EE:01"].Generated)
	}
}

func TestCounts(t *testing.T) {
	observed := map[string]model.ClientObservation{
		"a": {Band: model.Band24GHz},
		"b": {Band: model.Band5GHz},
		"c": {Band: model.Band5GHz},
		"d": {Band: ""},
	}
	counts := Counts(observed)
	if counts.Total != 4 || counts.Band24 != 1 || counts.Band5 != 2 || counts.Unknown != 1 {
		t.Fatalf("counts: %+v", counts)
	}
}

func TestParseStationTimeAbsolute(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ts := parseStationTime("2026/08/29 18:02:11", now)
	if ts == nil {
		t.Fatalf("expected parse")
	}
	expected := time.Date(2026, 8, 29, 18, 2, 11, 0, time.Local).UTC()
	if !ts.Equal(expected) {
		t.Fatalf("expected %v got %v", expected, ts)
	}
}

func TestParseStationTimeInvalid(t *testing.T) {
	if ts := parseStationTime("soon", time.Now()); ts != nil {
		t.Fatalf("expected nil for junk, got %v", ts)
	}
}
