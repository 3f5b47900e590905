package constants

import (
	"fmt"
	"strconv"
	"strings"
)

// Hours on a logsheet run 0000..2300, one column per hour.
const (
	MinHour = 0
	MaxHour = 23
)

// ParseHour accepts either a 4-digit zero-padded hour label ("0300") or a
// plain integer ("3") and returns the hour of day.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty hour")
	}
	if len(s) == 4 {
		h, err := strconv.Atoi(s[:2])
		if err == nil && s[2:] == "00" && h >= MinHour && h <= MaxHour {
			return h, nil
		}
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < MinHour || h > MaxHour {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	return h, nil
}

// FormatHour renders an hour of day as the logsheet column label ("0300").
func FormatHour(h int) string {
	return fmt.Sprintf("%02d00", h)
}
