package zyxel

import (
	"regexp"
	"strconv"
	"strings"
)

// The firmware prints free-form `key : value` text rather than any
// structured format, so every parser below is a fixed-format scrape.
// A miss returns zero values instead of an error; callers surface the
// affected fields as unavailable.

var (
	reModel    = regexp.MustCompile(`(?i)model\s*:\s*(.+)`)
	reFirmware = regexp.MustCompile(`(?i)firmware version\s*:\s*(.+)`)
	reBuild    = regexp.MustCompile(`(?i)build date\s*:\s*(.+)`)

	reUptimeDays = regexp.MustCompile(`(\d+)\s+days?\s+(\d+):(\d+):(\d+)`)
	reUptimeHMS  = regexp.MustCompile(`(\d+):(\d+):(\d+)`)

	reCPUCore  = regexp.MustCompile(`CPU core (\d+) utilization:\s*(\d+)\s*%`)
	reCPU1Min  = regexp.MustCompile(`CPU core (\d+) utilization for 1 min:\s*(\d+)\s*%`)
	reCPU5Min  = regexp.MustCompile(`CPU core (\d+) utilization for 5 min:\s*(\d+)\s*%`)
	reMemUsage = regexp.MustCompile(`(?i)memory usage:\s*(\d+)\s*%`)

	reStationSplit = regexp.MustCompile(`index:\s*\d+`)
	reStationMAC   = regexp.MustCompile(`MAC:\s*([\da-fA-F:]+)`)
	reStationIPv4  = regexp.MustCompile(`IPv4:\s*([\d.]+)`)
	reDisplaySSID  = regexp.MustCompile(`Display SSID:\s*(.+)`)
	reSSID         = regexp.MustCompile(`SSID:\s*(.+)`)
	reSecurity     = regexp.MustCompile(`Security:\s*(.+)`)
	reRSSIdBm      = regexp.MustCompile(`RSSI dBm:\s*(-?\d+)`)
	reRSSIPct      = regexp.MustCompile(`RSSI:\s*(\d+)`)
	reStationBand  = regexp.MustCompile(`Band:\s*([\dG.Hz]+)`)
	reStationSlot  = regexp.MustCompile(`Slot:\s*(\d+)`)
	reTxRate       = regexp.MustCompile(`TxRate:\s*(\d+)M`)
	reRxRate       = regexp.MustCompile(`RxRate:\s*(\d+)M`)
	reCapability   = regexp.MustCompile(`Capability:\s*(.+)`)
	reStationTime  = regexp.MustCompile(`Time:\s*(.+)`)

	reLANAddr   = regexp.MustCompile(`lan\s+Up\s+([\d.]+)\s+([\d.]+)`)
	reInterface = regexp.MustCompile(`(\d+)\s+(\S+)\s+(Up|Down|n/a)\s+([\d.]+|n/a)`)

	reSlotHead = regexp.MustCompile(`slot: slot(\d)`)
	reActivate = regexp.MustCompile(`Activate:\s*(\w+)`)
	reSlotBand = regexp.MustCompile(`Band:\s*([\dG.]+)`)
	reSSIDProf = regexp.MustCompile(`SSID_profile_\d+:\s*(\S+)`)

	rePortRow = regexp.MustCompile(`1\s+(\S+)\s+\d+\s+\d+\s+\d+\s+\d+\s+\d+\s+(\d+)\s+(\d+)\s+([\d:]+)\s+\d+\s+(\d+)\s+(\d+)`)
)

func parseVersion(output string) DeviceInfo {
	info := DeviceInfo{}
	if m := reModel.FindStringSubmatch(output); m != nil {
		info.Model = strings.TrimSpace(m[1])
	}
	if m := reFirmware.FindStringSubmatch(output); m != nil {
		info.Firmware = strings.TrimSpace(m[1])
	}
	if m := reBuild.FindStringSubmatch(output); m != nil {
		info.BuildDate = strings.TrimSpace(m[1])
	}
	return info
}

// parseUptime handles both "N days HH:MM:SS" and bare "HH:MM:SS".
func parseUptime(output string) int64 {
	if m := reUptimeDays.FindStringSubmatch(output); m != nil {
		days, _ := strconv.ParseInt(m[1], 10, 64)
		hours, _ := strconv.ParseInt(m[2], 10, 64)
		minutes, _ := strconv.ParseInt(m[3], 10, 64)
		seconds, _ := strconv.ParseInt(m[4], 10, 64)
		return days*86400 + hours*3600 + minutes*60 + seconds
	}
	if m := reUptimeHMS.FindStringSubmatch(output); m != nil {
		hours, _ := strconv.ParseInt(m[1], 10, 64)
		minutes, _ := strconv.ParseInt(m[2], 10, 64)
		seconds, _ := strconv.ParseInt(m[3], 10, 64)
		return hours*3600 + minutes*60 + seconds
	}
	return 0
}

func parseCPU(output string) CPUStats {
	stats := CPUStats{}
	if cores := reCPUCore.FindAllStringSubmatch(output, -1); len(cores) > 0 {
		sum := 0
		for _, core := range cores {
			v, _ := strconv.Atoi(core[2])
			stats.Cores = append(stats.Cores, v)
			sum += v
		}
		stats.Current = sum / len(cores)
	}
	stats.Avg1Min = averageMatches(reCPU1Min.FindAllStringSubmatch(output, -1))
	stats.Avg5Min = averageMatches(reCPU5Min.FindAllStringSubmatch(output, -1))
	return stats
}

func averageMatches(matches [][]string) int {
	if len(matches) == 0 {
		return 0
	}
	sum := 0
	for _, m := range matches {
		v, _ := strconv.Atoi(m[2])
		sum += v
	}
	return sum / len(matches)
}

func parseMemory(output string) int {
	if m := reMemUsage.FindStringSubmatch(output); m != nil {
		v, _ := strconv.Atoi(m[1])
		return v
	}
	return 0
}

// parseStations splits the output on `index: N` headers. Blocks
// without a MAC are discarded; everything else is best-effort.
func parseStations(output string) []Station {
	blocks := reStationSplit.Split(output, -1)
	if len(blocks) < 2 {
		return nil
	}

	stations := make([]Station, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		st := Station{}
		m := reStationMAC.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		st.MAC = canonicalMAC(m[1])

		if m := reStationIPv4.FindStringSubmatch(block); m != nil {
			st.IP = m[1]
		}
		if m := reDisplaySSID.FindStringSubmatch(block); m != nil {
			st.SSID = strings.TrimSpace(m[1])
		} else if m := reSSID.FindStringSubmatch(block); m != nil {
			st.SSID = strings.TrimSpace(m[1])
		}
		if m := reSecurity.FindStringSubmatch(block); m != nil {
			st.Security = strings.TrimSpace(m[1])
		}
		if m := reRSSIdBm.FindStringSubmatch(block); m != nil {
			st.RSSIdBm, _ = strconv.Atoi(m[1])
		}
		if m := reRSSIPct.FindStringSubmatch(block); m != nil {
			st.RSSIPercent, _ = strconv.Atoi(m[1])
		}
		if m := reStationBand.FindStringSubmatch(block); m != nil {
			st.Band = m[1]
		}
		if m := reStationSlot.FindStringSubmatch(block); m != nil {
			st.Slot, _ = strconv.Atoi(m[1])
		}
		if m := reTxRate.FindStringSubmatch(block); m != nil {
			st.TxRateMbps, _ = strconv.Atoi(m[1])
		}
		if m := reRxRate.FindStringSubmatch(block); m != nil {
			st.RxRateMbps, _ = strconv.Atoi(m[1])
		}
		if m := reCapability.FindStringSubmatch(block); m != nil {
			st.Capability = strings.TrimSpace(m[1])
		}
		if m := reStationTime.FindStringSubmatch(block); m != nil {
			st.ConnectedSince = strings.TrimSpace(m[1])
		}
		stations = append(stations, st)
	}
	return stations
}

func parseInterfaces(output string) NetworkInfo {
	network := NetworkInfo{}
	if m := reLANAddr.FindStringSubmatch(output); m != nil {
		network.IPAddress = m[1]
		network.Netmask = m[2]
	}
	for _, row := range reInterface.FindAllStringSubmatch(output, -1) {
		iface := InterfaceStatus{Name: row[2], Status: row[3]}
		if row[4] != "n/a" {
			iface.IP = row[4]
		}
		network.Interfaces = append(network.Interfaces, iface)
	}
	return network
}

func parseWLAN(output string) []RadioSlot {
	// Slice the output between slot headers; a non-greedy block
	// regex would swallow the trailing slot.
	headers := reSlotHead.FindAllStringSubmatchIndex(output, -1)
	radios := make([]RadioSlot, 0, len(headers))
	for i, h := range headers {
		slot, _ := strconv.Atoi(output[h[2]:h[3]])
		end := len(output)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		block := output[h[1]:end]

		radio := RadioSlot{Slot: slot}
		if m := reActivate.FindStringSubmatch(block); m != nil {
			radio.Active = strings.EqualFold(m[1], "yes")
		}
		if m := reSlotBand.FindStringSubmatch(block); m != nil {
			radio.Band = m[1]
		}
		for _, m := range reSSIDProf.FindAllStringSubmatch(block, -1) {
			if m[1] != "" {
				radio.SSIDs = append(radio.SSIDs, m[1])
			}
		}
		radios = append(radios, radio)
	}
	return radios
}

func parsePortStatus(output string) PortStats {
	port := PortStats{}
	m := rePortRow.FindStringSubmatch(output)
	if m == nil {
		return port
	}
	port.Status = m[1]
	port.TxRateKbps, _ = strconv.Atoi(m[2])
	port.RxRateKbps, _ = strconv.Atoi(m[3])
	port.Uptime = m[4]
	port.TxBytes, _ = strconv.ParseInt(m[5], 10, 64)
	port.RxBytes, _ = strconv.ParseInt(m[6], 10, 64)
	if idx := strings.Index(port.Status, "/"); idx > 0 {
		port.Speed = port.Status[:idx]
	}
	return port
}

func canonicalMAC(v string) string {
	v = strings.TrimSpace(strings.ToUpper(v))
	return strings.ReplaceAll(v, "-", ":")
}
