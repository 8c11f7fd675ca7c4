// config/duration.go
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errNonPositiveDuration = errors.New("config: duration must be > 0")

// parseDurationFlexible accepts strings like "90s"/"2m", numeric seconds, or
// time.Duration. Returns def on empty/unknown types; returns def + error on
// invalid or non-positive values.
func parseDurationFlexible(raw interface{}, def time.Duration) (time.Duration, error) {
	switch t := raw.(type) {
	case time.Duration:
		return positive(t, def)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return positive(d, def)
		}
		// Plain seconds in string form, e.g. "30" (the SMTP_TIMEOUT style).
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return positive(time.Duration(n)*time.Second, def)
		}
		return def, fmt.Errorf("config: cannot parse duration %q", s)
	case int:
		return positive(time.Duration(t)*time.Second, def)
	case int32:
		return positive(time.Duration(t)*time.Second, def)
	case int64:
		return positive(time.Duration(t)*time.Second, def)
	case float64:
		return positive(time.Duration(t*float64(time.Second)), def)
	default:
		// nil, bool, etc.
		return def, nil
	}
}

func positive(d, def time.Duration) (time.Duration, error) {
	if d <= 0 {
		return def, errNonPositiveDuration
	}
	return d, nil
}
