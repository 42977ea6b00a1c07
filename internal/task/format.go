package task

import (
	"strconv"
	"time"
)

// FormatInterval renders a duration in the largest unit that is at least 1:
// days, then hours, then minutes, then seconds. Values that don't divide
// evenly keep a fractional part ("1.5 minutes").
func FormatInterval(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return formatUnit(d.Hours()/24, "day")
	case d >= time.Hour:
		return formatUnit(d.Hours(), "hour")
	case d >= time.Minute:
		return formatUnit(d.Minutes(), "minute")
	default:
		return formatUnit(d.Seconds(), "second")
	}
}

func formatUnit(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if s == "1" {
		return s + " " + unit
	}
	return s + " " + unit + "s"
}
