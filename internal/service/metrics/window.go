package metrics

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Dashboard windows are one sample per minute, so the only degree of freedom
// in a window token is how many minutes to show.
const (
	defaultWindowSamples = 10
	maxWindowSamples     = 60
)

var windowPattern = regexp.MustCompile(`^(\d+)([smh])$`)

// ParseWindow converts a human window token ("10m", "600s", "1h") into a
// sample count clamped to [1,60]. Missing or malformed tokens fall back to
// the default; this never errors.
func ParseWindow(token string) int {
	match := windowPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(token)))
	if match == nil {
		return defaultWindowSamples
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return defaultWindowSamples
	}
	var minutes int
	switch match[2] {
	case "h":
		minutes = value * 60
	case "m":
		minutes = value
	case "s":
		minutes = int(math.Round(float64(value) / 60))
	}
	if minutes < 1 {
		minutes = 1
	}
	if minutes > maxWindowSamples {
		minutes = maxWindowSamples
	}
	return minutes
}
