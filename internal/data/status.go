package data

// Generation I status byte layout: the low three bits count remaining sleep
// turns, then one bit each for poison, burn, freeze and paralysis. The top
// bit marks sleep as self-inflicted (Rest).
const (
	statusSleep     = 0x07
	statusPoison    = 0x08
	statusBurn      = 0x10
	statusFreeze    = 0x20
	statusParalysis = 0x40
	// StatusSelf marks a self-inflicted sleep.
	StatusSelf = 0x80
)

// StatusName returns the protocol name of a status byte, or "" when healthy.
func StatusName(status uint8) string {
	switch {
	case status&statusSleep != 0:
		return "slp"
	case status&statusPoison != 0:
		return "psn"
	case status&statusBurn != 0:
		return "brn"
	case status&statusFreeze != 0:
		return "frz"
	case status&statusParalysis != 0:
		return "par"
	default:
		return ""
	}
}

// SleepTurns returns the remaining sleep counter of a status byte.
func SleepTurns(status uint8) uint8 {
	return status & statusSleep
}
