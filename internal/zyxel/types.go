package zyxel

import "time"

// DeviceInfo is parsed from `show version`.
type DeviceInfo struct {
	Model     string `json:"model"`
	Firmware  string `json:"firmware"`
	BuildDate string `json:"build_date"`
}

// CPUStats is parsed from `show cpu all`. Averages collapse the
// per-core readings the firmware reports.
type CPUStats struct {
	Current int   `json:"current"`
	Avg1Min int   `json:"avg_1min"`
	Avg5Min int   `json:"avg_5min"`
	Cores   []int `json:"cores,omitempty"`
}

// Station is one row of `show wireless-hal station info`, rebuilt on
// every poll. It carries no identity beyond the MAC.
type Station struct {
	MAC            string `json:"mac"`
	IP             string `json:"ip,omitempty"`
	SSID           string `json:"ssid,omitempty"`
	Security       string `json:"security,omitempty"`
	RSSIdBm        int    `json:"rssi_dbm"`
	RSSIPercent    int    `json:"rssi_percent"`
	Band           string `json:"band,omitempty"`
	Slot           int    `json:"slot"`
	TxRateMbps     int    `json:"tx_rate_mbps"`
	RxRateMbps     int    `json:"rx_rate_mbps"`
	Capability     string `json:"capability,omitempty"`
	ConnectedSince string `json:"connected_since,omitempty"`
}

// InterfaceStatus is one row of `show interface all`.
type InterfaceStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	IP     string `json:"ip,omitempty"`
}

// NetworkInfo summarizes `show interface all`, with the lan address
// promoted to the top level.
type NetworkInfo struct {
	IPAddress  string            `json:"ip_address,omitempty"`
	Netmask    string            `json:"netmask,omitempty"`
	Interfaces []InterfaceStatus `json:"interfaces,omitempty"`
}

// RadioSlot is one slot block of `show wlan all`. Slot 1 carries the
// 2.4GHz radio, slot 2 the 5GHz radio.
type RadioSlot struct {
	Slot   int      `json:"slot"`
	Active bool     `json:"active"`
	Band   string   `json:"band,omitempty"`
	SSIDs  []string `json:"ssids,omitempty"`
}

// PortStats is the uplink row of `show port status`.
type PortStats struct {
	Status     string `json:"status,omitempty"`
	Speed      string `json:"speed,omitempty"`
	TxRateKbps int    `json:"tx_rate_kbps"`
	RxRateKbps int    `json:"rx_rate_kbps"`
	Uptime     string `json:"uptime,omitempty"`
	TxBytes    int64  `json:"tx_bytes"`
	RxBytes    int64  `json:"rx_bytes"`
}

// Snapshot is the flat value object one poll cycle produces. It is
// ephemeral: every field reflects the latest successful poll and the
// whole struct is discarded and rebuilt next cycle. Missing lists the
// read commands whose output could not be fetched or parsed; their
// fields stay at zero values and surface as unavailable.
type Snapshot struct {
	FetchedAt     time.Time   `json:"fetched_at"`
	Device        DeviceInfo  `json:"device"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	CPU           CPUStats    `json:"cpu"`
	MemoryPercent int         `json:"memory_percent"`
	Stations      []Station   `json:"stations"`
	Network       NetworkInfo `json:"network"`
	Radios        []RadioSlot `json:"radios"`
	Port          PortStats   `json:"port"`
	Missing       []string    `json:"missing,omitempty"`
}

// Radio returns the slot block for the given slot number, if present.
func (s *Snapshot) Radio(slot int) (RadioSlot, bool) {
	for _, r := range s.Radios {
		if r.Slot == slot {
			return r, true
		}
	}
	return RadioSlot{}, false
}

// Unavailable reports whether the given read command failed this cycle.
func (s *Snapshot) Unavailable(command string) bool {
	for _, m := range s.Missing {
		if m == command {
			return true
		}
	}
	return false
}
