package oui

import "testing"

func TestLoadEmbedded(t *testing.T) {
	db, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	if got := db.Lookup("BC:32:5F:12:34:56"); got != "Zyxel" {
		t.Fatalf("expected Zyxel, got %q", got)
	}
}

func TestLookupNormalization(t *testing.T) {
	db, err := Load([]byte(`{"aa-bb-cc": "VendorX"}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []string{"AA:BB:CC:00:11:22", "aa-bb-cc-00-11-22", "aabb.cc00.1122"}
	for _, mac := range cases {
		if got := db.Lookup(mac); got != "VendorX" {
			t.Fatalf("lookup %q: expected VendorX got %q", mac, got)
		}
	}
	if got := db.Lookup("11:22:33:44:55:66"); got != "Unknown" {
		t.Fatalf("expected Unknown, got %q", got)
	}
}

func TestLookupNilDB(t *testing.T) {
	var db *DB
	if got := db.Lookup("AA:BB:CC:DD:EE:FF"); got != "Unknown" {
		t.Fatalf("expected Unknown on nil db, got %q", got)
	}
}
