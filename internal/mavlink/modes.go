package mavlink

import (
	"fmt"
	"strconv"
	"strings"
)

// flightModes maps ArduCopter custom_mode numbers to their names.
var flightModes = map[uint32]string{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	16: "POSHOLD",
	17: "BRAKE",
}

// modeNumbers is the reverse of flightModes, keyed by upper-case name.
var modeNumbers = func() map[string]uint32 {
	m := make(map[string]uint32, len(flightModes))
	for num, name := range flightModes {
		m[name] = num
	}
	return m
}()

// ModeName returns the flight mode name for a custom_mode value. Unknown
// values render as MODE_<n>.
func ModeName(customMode uint32) string {
	if name, ok := flightModes[customMode]; ok {
		return name
	}
	return fmt.Sprintf("MODE_%d", customMode)
}

// ModeNumber resolves a mode name, case-insensitively, to its custom_mode
// value. MODE_<n> names resolve back to their number.
func ModeNumber(name string) (uint32, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if num, ok := modeNumbers[upper]; ok {
		return num, true
	}
	if rest, ok := strings.CutPrefix(upper, "MODE_"); ok {
		if n, err := strconv.ParseUint(rest, 10, 32); err == nil {
			return uint32(n), true
		}
	}
	return 0, false
}
