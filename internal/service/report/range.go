package report

import (
	"strings"
	"time"
)

// Range bounds a report query as a half-open [start, end) interval. Nil
// pointers mean unbounded on that side.
type Range struct {
	Start *time.Time
	End   *time.Time
}

var presetDurations = map[string]time.Duration{
	"24hours": 24 * time.Hour,
	"7days":   7 * 24 * time.Hour,
	"30days":  30 * 24 * time.Hour,
	"90days":  90 * 24 * time.Hour,
}

// ResolveRange turns explicit epoch-millisecond bounds or a named preset
// into a concrete interval. Explicit bounds win over the preset; "all",
// an unknown preset, or no input at all yields an unbounded range.
func ResolveRange(startMS, endMS *int64, preset string, now time.Time) Range {
	var r Range
	if startMS != nil {
		start := time.UnixMilli(*startMS)
		r.Start = &start
	}
	if endMS != nil {
		end := time.UnixMilli(*endMS)
		r.End = &end
	}
	if r.Start != nil || r.End != nil {
		return r
	}
	duration, ok := presetDurations[strings.TrimSpace(preset)]
	if !ok {
		return r
	}
	start := now.Add(-duration)
	end := now
	r.Start = &start
	r.End = &end
	return r
}
