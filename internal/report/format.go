package report

import (
	"fmt"
	"math"
	"strconv"

	"codeberg.org/mutker/socmonitor/internal/estimator"
)

const (
	undefinedDuration = "00:00:00?"
	undefinedPercent  = "  -.--%"
	undefinedCompact  = "-1"
)

// FormatDuration renders seconds as HH:MM:SS. Hours are not wrapped at 24.
// Negative values have no meaningful duration and render as 00:00:00?.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		return undefinedDuration
	}

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// FormatPercent renders a percentage with two decimals, right aligned to the
// width of 100.00%.
func FormatPercent(percent float64) string {
	return fmt.Sprintf("%6.2f%%", percent)
}

func durationMeasure(m estimator.Measure) string {
	if !m.Valid {
		return undefinedDuration
	}
	return FormatDuration(roundInt(m.Value))
}

func percentMeasure(m estimator.Measure) string {
	if !m.Valid {
		return undefinedPercent
	}
	return FormatPercent(m.Value)
}

func compactMeasure(m estimator.Measure, decimals int) string {
	if !m.Valid {
		return undefinedCompact
	}
	if decimals == 0 {
		return strconv.Itoa(roundInt(m.Value))
	}
	return strconv.FormatFloat(roundTo(m.Value, decimals), 'f', -1, 64)
}

func compactFloat(v float64) string {
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
