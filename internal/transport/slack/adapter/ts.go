package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTS converts a Slack message timestamp ("1712345678.123456") to an instant.
// Slack ts values carry microsecond precision; longer fractions are truncated.
func ParseTS(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty ts")
	}
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ts %q: %w", ts, err)
	}
	var usec int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		fracPart += strings.Repeat("0", 6-len(fracPart))
		usec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid ts %q: %w", ts, err)
		}
	}
	return time.Unix(sec, usec*int64(time.Microsecond)).UTC(), nil
}
