package analyzer

import (
	"strings"
	"time"

	"github.com/vainnor/session-stats/models"
)

type isoLayout struct {
	layout string
	aware  bool
}

// Accepted ISO-8601 forms. Fractional seconds are accepted by time.Parse
// after the seconds field even though the layouts omit them.
var isoLayouts = []isoLayout{
	{"2006-01-02T15:04:05Z07:00", true},
	{"2006-01-02T15:04:05Z0700", true},
	{"2006-01-02T15:04:05Z07", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04Z0700", true},
	{"2006-01-02T15:04Z07", true},
	{"2006-01-02T15:04", false},
	{"2006-01-02T15Z07:00", true},
	{"2006-01-02T15", false},
	{"2006-01-02", false},
}

// ParseISOTime parses an ISO-8601 timestamp. Timestamps without an offset
// are taken as UTC. Precision beyond microseconds is truncated.
func ParseISOTime(value string) (time.Time, error) {
	t, _, err := parseISOTime(value)
	return t, err
}

func parseISOTime(value string) (time.Time, bool, error) {
	s := strings.TrimSpace(value)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, l := range isoLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t.Truncate(time.Microsecond), l.aware, nil
		}
	}
	return time.Time{}, false, &ParseError{Value: value}
}

// SessionMinutes returns the elapsed minutes between a record's start and end.
// Both timestamps must carry an offset or neither. The caller must check
// HasTimestamps first.
func SessionMinutes(record models.SessionRecord) (float64, error) {
	start, startAware, err := parseISOTime(record.StartTime)
	if err != nil {
		return 0, withField(err, "start_time")
	}
	end, endAware, err := parseISOTime(record.EndTime)
	if err != nil {
		return 0, withField(err, "end_time")
	}
	if startAware != endAware {
		return 0, ErrMixedOffsets
	}
	seconds := float64(end.Sub(start).Microseconds()) / 1e6
	return seconds / 60, nil
}

func withField(err error, field string) error {
	if pe, ok := err.(*ParseError); ok {
		pe.Field = field
	}
	return err
}
