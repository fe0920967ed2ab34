package helpers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var unitDurations = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

// ParseExpiresIn accepts plain seconds ("3600"), a single-unit shorthand
// ("90m", "7d", "2w", "1y") or anything time.ParseDuration understands.
func ParseExpiresIn(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", v)
		}
		return scale(v, secs, time.Second)
	}
	unit := strings.ToLower(v[len(v)-1:])
	if mult, ok := unitDurations[unit]; ok {
		if n, err := strconv.ParseInt(v[:len(v)-1], 10, 64); err == nil {
			if n <= 0 {
				return 0, fmt.Errorf("duration must be positive: %q", v)
			}
			return scale(v, n, mult)
		}
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", v)
	}
	return d, nil
}

func scale(v string, n int64, unit time.Duration) (time.Duration, error) {
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("duration out of range: %q", v)
	}
	return time.Duration(n) * unit, nil
}
