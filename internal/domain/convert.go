package domain

import (
	"fmt"
	"strings"
)

var unitBytes = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
}

// ValidUnit reports whether unit is one of B, KB, MB or GB.
func ValidUnit(unit string) bool {
	_, ok := unitBytes[strings.ToUpper(unit)]
	return ok
}

// ConvertData converts a data amount between "B", "KB", "MB" and "GB".
// Returns v unchanged if from == to or if the units are unrecognised.
func ConvertData(v float64, from, to string) float64 {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return v
	}
	f, ok1 := unitBytes[from]
	t, ok2 := unitBytes[to]
	if !ok1 || !ok2 {
		return v
	}
	return v * f / t
}

// FormatData renders a byte count in unit with two decimals.
func FormatData(bytes int64, unit string) string {
	return fmt.Sprintf("%.2f %s", ConvertData(float64(bytes), "B", unit), strings.ToUpper(unit))
}
