package aggregator

import (
	"strings"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

type OUILookup interface {
	Lookup(mac string) string
}

// Aggregator turns the raw station rows of one snapshot into per-MAC
// client observations. Later rows for a duplicate MAC win, matching
// the firmware behavior of printing the freshest association last.
type Aggregator struct {
	ouiLookup OUILookup
}

func New(ouiLookup OUILookup) *Aggregator {
	return &Aggregator{ouiLookup: ouiLookup}
}

func (a *Aggregator) Aggregate(snapshot *zyxel.Snapshot) map[string]model.ClientObservation {
	now := snapshot.FetchedAt.UTC()
	result := make(map[string]model.ClientObservation, len(snapshot.Stations))

	for _, st := range snapshot.Stations {
		if st.MAC == "" {
			continue
		}
		obs := model.ClientObservation{
			MAC:         st.MAC,
			IP:          st.IP,
			SSID:        st.SSID,
			Security:    st.Security,
			Band:        normalizeBand(st.Band),
			Slot:        st.Slot,
			RSSIdBm:     st.RSSIdBm,
			RSSIPercent: st.RSSIPercent,
			TxRateMbps:  st.TxRateMbps,
			RxRateMbps:  st.RxRateMbps,
			Capability:  st.Capability,
			ObservedAt:  now,
		}
		if ts := parseStationTime(st.ConnectedSince, now); ts != nil {
			obs.ConnectedSince = ts
		}
		obs.Vendor = a.ouiLookup.Lookup(st.MAC)
		obs.Generated = generatedName(st.MAC, obs.Vendor)
		result[st.MAC] = obs
	}
	return result
}

// Counts tallies stations per band for the sensor surface.
func Counts(observed map[string]model.ClientObservation) model.ClientCounts {
	counts := model.ClientCounts{Total: len(observed)}
	for _, obs := range observed {
		switch obs.Band {
		case model.Band24GHz:
			counts.Band24++
		case model.Band5GHz:
			counts.Band5++
		default:
			counts.Unknown++
		}
	}
	return counts
}

// normalizeBand maps the firmware's band spellings ("2.4G", "2.4GHz",
// "5G", "5GHz") onto the two canonical values.
func normalizeBand(band string) string {
	switch strings.TrimSuffix(strings.TrimSpace(band), "Hz") {
	case "2.4G":
		return model.Band24GHz
	case "5G":
		return model.Band5GHz
	default:
		return strings.TrimSpace(band)
	}
}

func generatedName(mac, vendor string) string {
	suffix := strings.ReplaceAll(mac, ":", "")
	if len(suffix) >= 4 {
		suffix = suffix[len(suffix)-4:]
	}
	if vendor == "Unknown" || vendor == "" {
		return "Client-" + suffix
	}
	return vendor + "-" + suffix
}
