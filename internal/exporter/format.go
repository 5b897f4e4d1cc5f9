package exporter

import (
	"math"
	"strconv"
)

// formatFloat renders a value with the shortest exact representation.
// Missing values become empty cells.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatFixed renders a value with a fixed number of decimals for console
// tables. Missing values print as "NA".
func formatFixed(f float64, decimals int) string {
	if math.IsNaN(f) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatInt formats an integer value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
