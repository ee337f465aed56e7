package zyxel

// Fixed NWA50AX CLI command surface, validated against firmware
// V7.10(ABYW.3). These are vendor CLI strings, not a wire protocol;
// the device offers no structured API.
const (
	CmdVersion     = "show version"
	CmdUptime      = "show system uptime"
	CmdCPU         = "show cpu all"
	CmdMemory      = "show mem status"
	CmdStations    = "show wireless-hal station info"
	CmdInterfaces  = "show interface all"
	CmdWLAN        = "show wlan all"
	CmdPortStatus  = "show port status"
	CmdReboot      = "reboot"
	cmdConfigure   = "configure terminal"
	cmdExit        = "exit"
	cmdWrite       = "write"
	cmdActivate    = "activate"
	cmdNoActivate  = "no activate"
	cmdSchedule    = "ssid-schedule"
	cmdNoSchedule  = "no ssid-schedule"
	radioProfile   = "wlan-radio-profile "
	ssidProfileCmd = "wlan-ssid-profile "
)

// readCommands lists every `show` command one poll cycle executes, in
// the order the firmware handles them fastest. All of them run inside
// a single SSH session; reconnecting per command trips the firmware's
// session limit and surfaces as "Socket is closed" errors.
var readCommands = []string{
	CmdVersion,
	CmdUptime,
	CmdCPU,
	CmdMemory,
	CmdStations,
	CmdInterfaces,
	CmdWLAN,
	CmdPortStatus,
}

// radioSequence builds the configuration-terminal command list that
// activates or deactivates the radio profile bound to a slot.
func radioSequence(profile string, active bool) []string {
	toggle := cmdNoActivate
	if active {
		toggle = cmdActivate
	}
	return []string{
		cmdConfigure,
		radioProfile + profile,
		toggle,
		cmdExit,
		cmdWrite,
	}
}

// guestSequence builds the command list controlling the guest SSID
// schedule. The switch semantics invert: "always on" removes the
// schedule, "off" re-enables it so the SSID follows configured hours.
func guestSequence(profile string, alwaysOn bool) []string {
	toggle := cmdSchedule
	if alwaysOn {
		toggle = cmdNoSchedule
	}
	return []string{
		cmdConfigure,
		ssidProfileCmd + profile,
		toggle,
		cmdExit,
		cmdWrite,
	}
}
