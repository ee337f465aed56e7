package mqtt

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/micro-ha/zyxel-ap/addon/internal/config"
	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

type stubSource struct {
	snapshot *zyxel.Snapshot
	counts   model.ClientCounts
	guestOn  bool
	known    bool
}

func (s *stubSource) LatestSnapshot() (*zyxel.Snapshot, model.ClientCounts, bool) {
	return s.snapshot, s.counts, s.snapshot != nil
}

func (s *stubSource) GuestSSIDState(context.Context) (bool, bool, error) {
	return s.guestOn, s.known, nil
}

type stubController struct {
	radioSlot int
	radioOn   bool
	guestOn   *bool
	reboots   int
}

func (c *stubController) SetRadio(_ context.Context, slot int, active bool) error {
	c.radioSlot = slot
	c.radioOn = active
	return nil
}

func (c *stubController) SetGuestSSID(_ context.Context, on bool) error {
	c.guestOn = &on
	return nil
}

func (c *stubController) Reboot(context.Context) error {
	c.reboots++
	return nil
}

func testPublisher(source StateSource, control Controller) *Publisher {
	cfg := config.MQTTConfig{
		Broker:          "mqtt://localhost:1883",
		DeviceName:      "attic-ap",
		DiscoveryPrefix: "homeassistant",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, "instance-123", source, control, nil, logger)
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("id-1", "attic-ap", "", "")
	if info.Manufacturer != "Zyxel" {
		t.Errorf("Manufacturer = %q, want %q", info.Manufacturer, "Zyxel")
	}
	if info.Model != "NWA50AX" {
		t.Errorf("Model = %q, want %q", info.Model, "NWA50AX")
	}
	if len(info.Identifiers) != 1 || info.Identifiers[0] != "id-1" {
		t.Errorf("Identifiers = %v", info.Identifiers)
	}

	info = NewDeviceInfo("id-1", "attic-ap", "NWA50AX", "V6.70(ABYW.5)")
	if info.SWVersion != "V6.70(ABYW.5)" {
		t.Errorf("SWVersion = %q", info.SWVersion)
	}
}

func TestPublisher_TopicPaths(t *testing.T) {
	p := testPublisher(&stubSource{}, nil)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", p.baseTopic(), "zyxel_ap/attic-ap"},
		{"availabilityTopic", p.availabilityTopic(), "zyxel_ap/attic-ap/availability"},
		{"stateTopic uptime", p.stateTopic("uptime"), "zyxel_ap/attic-ap/uptime/state"},
		{"commandTopic radio_24g", p.commandTopic("radio_24g"), "zyxel_ap/attic-ap/radio_24g/set"},
		{"discoveryTopic sensor uptime", p.discoveryTopic("sensor", "uptime"), "homeassistant/sensor/attic-ap/uptime/config"},
		{"discoveryTopic switch guest", p.discoveryTopic("switch", "guest_ssid"), "homeassistant/switch/attic-ap/guest_ssid/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublisher_SensorDefinitions(t *testing.T) {
	source := &stubSource{snapshot: &zyxel.Snapshot{
		Device: zyxel.DeviceInfo{Model: "NWA50AX", Firmware: "V6.70(ABYW.5)"},
	}}
	p := testPublisher(source, nil)

	defs := p.sensorDefinitions()
	expected := []string{
		"uptime", "cpu_usage", "memory_usage",
		"clients_total", "clients_24g", "clients_5g", "firmware",
	}
	if len(defs) != len(expected) {
		t.Fatalf("got %d sensor definitions, want %d", len(defs), len(expected))
	}
	for i, want := range expected {
		if defs[i].entitySuffix != want {
			t.Errorf("definition %d = %q, want %q", i, defs[i].entitySuffix, want)
		}
		if defs[i].config.UniqueID != "instance-123_"+want {
			t.Errorf("unique id = %q", defs[i].config.UniqueID)
		}
		if defs[i].config.Device.SWVersion != "V6.70(ABYW.5)" {
			t.Errorf("sw version = %q", defs[i].config.Device.SWVersion)
		}
	}
}

func TestPublisher_SwitchDefinitions(t *testing.T) {
	p := testPublisher(&stubSource{}, nil)

	defs := p.switchDefinitions()
	if len(defs) != 3 {
		t.Fatalf("got %d switch definitions, want 3", len(defs))
	}
	for _, def := range defs {
		if def.config.PayloadOn != "ON" || def.config.PayloadOff != "OFF" {
			t.Errorf("%s payloads = %q/%q", def.entitySuffix, def.config.PayloadOn, def.config.PayloadOff)
		}
		if def.config.CommandTopic != p.commandTopic(def.entitySuffix) {
			t.Errorf("%s command topic = %q", def.entitySuffix, def.config.CommandTopic)
		}
	}
	if defs[0].entitySuffix != "radio_24g" || defs[1].entitySuffix != "radio_5g" {
		t.Fatalf("unexpected radio switch order: %q, %q", defs[0].entitySuffix, defs[1].entitySuffix)
	}
	guest := defs[2]
	if guest.entitySuffix != "guest_ssid" || !guest.config.Optimistic {
		t.Fatalf("guest switch = %+v", guest)
	}
}

func TestHandleCommand_RoutesToController(t *testing.T) {
	control := &stubController{}
	p := testPublisher(&stubSource{}, control)

	p.handleCommand("zyxel_ap/attic-ap/radio_5g/set", []byte("OFF"))
	if control.radioSlot != 2 || control.radioOn {
		t.Fatalf("radio call = slot:%d on:%v", control.radioSlot, control.radioOn)
	}

	p.handleCommand("zyxel_ap/attic-ap/guest_ssid/set", []byte("on"))
	if control.guestOn == nil || !*control.guestOn {
		t.Fatalf("guest call = %v", control.guestOn)
	}

	p.handleCommand("zyxel_ap/attic-ap/reboot/set", []byte("PRESS"))
	if control.reboots != 1 {
		t.Fatalf("reboots = %d", control.reboots)
	}

	// Topics outside the command namespace are ignored.
	p.handleCommand("zyxel_ap/other-ap/radio_24g/set", []byte("ON"))
	p.handleCommand("zyxel_ap/attic-ap/radio_24g/state", []byte("ON"))
	if control.radioSlot != 2 {
		t.Fatalf("unexpected extra radio call: slot %d", control.radioSlot)
	}
}
