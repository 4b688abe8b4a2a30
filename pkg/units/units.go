// Package units converts human readable size strings into byte counts.
//
// Two flavours exist and are deliberately kept apart: title metadata reports
// sizes in binary units (KiB, MiB, GiB) while user facing inputs use decimal
// units (kb, mb, gb).
package units

import (
	"math"
	"strconv"
	"strings"
)

var binaryUnits = map[string]float64{
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
}

var decimalUnits = map[string]float64{
	"kb": 1e3,
	"mb": 1e6,
	"gb": 1e9,
}

// ParseSize parses strings like "15.1 GiB" using binary multiples.
// The second return value is false when the input is empty or malformed.
func ParseSize(s string) (int64, bool) {
	value, unit, ok := split(s)
	if !ok {
		return 0, false
	}
	mult, ok := binaryUnits[unit]
	if !ok {
		return 0, false
	}
	return int64(math.Round(value * mult)), true
}

// ParseSizeToBytes parses strings like "500 MB" using decimal multiples.
// Units are matched case-insensitively.
func ParseSizeToBytes(s string) (int64, bool) {
	value, unit, ok := split(s)
	if !ok {
		return 0, false
	}
	mult, ok := decimalUnits[strings.ToLower(unit)]
	if !ok {
		return 0, false
	}
	return int64(math.Round(value * mult)), true
}

func split(s string) (float64, string, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || value < 0 {
		return 0, "", false
	}
	return value, fields[1], true
}
