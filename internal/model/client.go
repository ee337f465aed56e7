package model

import "time"

const (
	Band24GHz = "2.4GHz"
	Band5GHz  = "5GHz"
)

// ClientObservation is the merged per-MAC result of one poll cycle.
// It is rebuilt from scratch every poll; nothing here is durable.
type ClientObservation struct {
	MAC            string
	IP             string
	SSID           string
	Security       string
	Band           string
	Slot           int
	RSSIdBm        int
	RSSIPercent    int
	TxRateMbps     int
	RxRateMbps     int
	Capability     string
	ConnectedSince *time.Time
	Vendor         string
	Generated      string
	ObservedAt     time.Time
}

// ClientState is the persisted per-MAC row updated after each poll.
type ClientState struct {
	MAC              string
	Online           bool
	LastSeenAt       *time.Time
	ConnectedSinceAt *time.Time
	LastIP           *string
	LastSSID         *string
	LastBand         *string
	LastRSSIdBm      *int
	Vendor           string
	GeneratedName    string
	FirstSeenAt      time.Time
	UpdatedAt        time.Time
}

// ClientRegistered stores a user-assigned identity for a MAC.
type ClientRegistered struct {
	MAC       string
	Name      *string
	Icon      *string
	Comment   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientView is the API representation merging state and registration.
type ClientView struct {
	MAC              string     `json:"mac"`
	Name             string     `json:"name"`
	Vendor           string     `json:"vendor"`
	Icon             *string    `json:"icon,omitempty"`
	Comment          *string    `json:"comment,omitempty"`
	Status           string     `json:"status"`
	Online           bool       `json:"online"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty"`
	ConnectedSinceAt *time.Time `json:"connected_since_at,omitempty"`
	LastIP           *string    `json:"last_ip,omitempty"`
	LastSSID         *string    `json:"last_ssid,omitempty"`
	LastBand         *string    `json:"last_band,omitempty"`
	LastRSSIdBm      *int       `json:"last_rssi_dbm,omitempty"`
	FirstSeenAt      *time.Time `json:"first_seen_at,omitempty"`
	RegisteredAt     *time.Time `json:"registered_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PollRun records the outcome of one poll cycle.
type PollRun struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	OK           bool      `json:"ok"`
	Error        string    `json:"error,omitempty"`
	StationCount int       `json:"station_count"`
	MissingCount int       `json:"missing_count"`
}

// ClientCounts aggregates station totals per band for one poll cycle.
type ClientCounts struct {
	Total   int `json:"total"`
	Band24  int `json:"band_24ghz"`
	Band5   int `json:"band_5ghz"`
	Unknown int `json:"unknown_band,omitempty"`
}
