package aggregator

import (
	"strconv"
	"strings"
	"time"
)

// The station Time field has appeared in two shapes across firmware
// builds: an absolute "2006/01/02 15:04:05" local timestamp and a
// relative "HH:MM:SS" association age.
func parseStationTime(value string, now time.Time) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if ts, err := time.ParseInLocation("2006/01/02 15:04:05", value, time.Local); err == nil {
		v := ts.UTC()
		return &v
	}
	if d, ok := parseAge(value); ok {
		v := now.UTC().Add(-d)
		return &v
	}
	return nil
}

func parseAge(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}
