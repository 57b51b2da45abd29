package personalize

import (
	"strings"
	"time"
)

// EvaluateOpenStatus interprets an opening-hours value against the given
// local time. Supported forms: "HH:MM-HH:MM", the literal "closed", and
// "24/7" / "24 hours". Anything missing or unparseable yields
// OpenStatusUnknown rather than a guess.
func EvaluateOpenStatus(hours string, now time.Time) OpenStatus {
	hours = strings.TrimSpace(strings.ToLower(hours))
	if hours == "" {
		return OpenStatusUnknown
	}
	switch hours {
	case "closed":
		return OpenStatusClosed
	case "24/7", "24 hours", "always open":
		return OpenStatusOpen
	}

	parts := strings.SplitN(hours, "-", 2)
	if len(parts) != 2 {
		return OpenStatusUnknown
	}
	open, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return OpenStatusUnknown
	}
	close, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return OpenStatusUnknown
	}

	minute := now.Hour()*60 + now.Minute()
	if open == close {
		return OpenStatusOpen
	}
	if open < close {
		if minute >= open && minute < close {
			return OpenStatusOpen
		}
		return OpenStatusClosed
	}
	// overnight range, e.g. 22:00-06:00
	if minute >= open || minute < close {
		return OpenStatusOpen
	}
	return OpenStatusClosed
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
