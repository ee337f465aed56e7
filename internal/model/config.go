package model

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// APConfig represents a normalized integration configuration payload
// describing one NWA50AX access point.
type APConfig struct {
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	Username        string    `json:"username"`
	Password        string    `json:"password"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	CommandTimeout  int       `json:"command_timeout_sec"`
	GuestProfile    string    `json:"guest_profile"`
	Slot1Profile    string    `json:"slot1_profile"`
	Slot2Profile    string    `json:"slot2_profile"`
}

func (c APConfig) PollInterval() time.Duration {
	if c.PollIntervalSec <= 0 {
		return 60 * time.Second
	}
	interval := time.Duration(c.PollIntervalSec) * time.Second
	if interval < 15*time.Second {
		return 15 * time.Second
	}
	return interval
}

// CommandDeadline bounds one CLI command round-trip inside a session.
func (c APConfig) CommandDeadline() time.Duration {
	timeout := time.Duration(c.CommandTimeout) * time.Second
	if timeout < 5*time.Second {
		return 10 * time.Second
	}
	return timeout
}

// Address returns the host:port dial target for the SSH transport.
func (c APConfig) Address() string {
	host := strings.TrimSpace(c.Host)
	port := c.Port
	if port <= 0 {
		port = 22
	}
	if h, p, err := net.SplitHostPort(host); err == nil && p != "" {
		return net.JoinHostPort(h, p)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// RadioProfile maps a radio slot number to its configured profile name.
// The NWA50AX binds slot1 (2.4GHz) and slot2 (5GHz) to fixed profiles.
func (c APConfig) RadioProfile(slot int) string {
	switch slot {
	case 1:
		if strings.TrimSpace(c.Slot1Profile) != "" {
			return strings.TrimSpace(c.Slot1Profile)
		}
		return "default"
	case 2:
		if strings.TrimSpace(c.Slot2Profile) != "" {
			return strings.TrimSpace(c.Slot2Profile)
		}
		return "default2"
	default:
		return ""
	}
}

// GuestSSIDProfile returns the SSID profile the guest schedule toggle
// operates on.
func (c APConfig) GuestSSIDProfile() string {
	if strings.TrimSpace(c.GuestProfile) != "" {
		return strings.TrimSpace(c.GuestProfile)
	}
	return "Guest"
}
