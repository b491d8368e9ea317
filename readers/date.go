package readers

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate parses a PDF date string (D:YYYYMMDDHHmmSSOHH'mm').
// Trailing components may be omitted; a missing offset means UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")

	digits := 0
	for digits < len(s) && digits < 14 && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits < 4 || digits%2 != 0 {
		return time.Time{}, false
	}

	// year, month, day, hour, minute, second
	f := [6]int{0, 1, 1, 0, 0, 0}
	f[0], _ = strconv.Atoi(s[:4])
	for i, pos := 1, 4; pos < digits; i, pos = i+1, pos+2 {
		f[i], _ = strconv.Atoi(s[pos : pos+2])
	}

	if f[1] < 1 || f[1] > 12 || f[2] < 1 || f[3] > 23 || f[4] > 59 || f[5] > 59 {
		return time.Time{}, false
	}

	loc, ok := parseZone(s[digits:])
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], 0, loc)
	if t.Day() != f[2] {
		return time.Time{}, false
	}

	return t, true
}

func parseZone(z string) (*time.Location, bool) {
	z = strings.ReplaceAll(strings.TrimSpace(z), "'", "")
	if z == "" || strings.HasPrefix(z, "Z") {
		return time.UTC, true
	}

	if len(z) < 3 || (z[0] != '+' && z[0] != '-') {
		return nil, false
	}

	h, err := strconv.Atoi(z[1:3])
	if err != nil || h > 23 {
		return nil, false
	}

	m := 0
	if len(z) >= 5 {
		m, err = strconv.Atoi(z[3:5])
		if err != nil || m > 59 {
			return nil, false
		}
	}

	offset := h*3600 + m*60
	if z[0] == '-' {
		offset = -offset
	}

	return time.FixedZone("", offset), true
}
