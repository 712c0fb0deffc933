package catalog

import (
	"strings"
	"time"
	"unicode"
)

// ParseISODuration parses the ISO-8601 duration subset used by the catalog
// (days, hours, minutes, seconds). Malformed input yields zero rather than an
// error: a missing duration downgrades metadata, it never blocks discovery.
func ParseISODuration(value string) time.Duration {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !strings.HasPrefix(value, "P") {
		return 0
	}
	value = value[1:]

	var (
		total   time.Duration
		number  strings.Builder
		inTime  bool
		invalid bool
	)
	for _, r := range value {
		switch {
		case r == 'T':
			inTime = true
		case unicode.IsDigit(r):
			number.WriteRune(r)
		default:
			n := parseInt(number.String())
			number.Reset()
			if n < 0 {
				invalid = true
				break
			}
			switch r {
			case 'D':
				total += time.Duration(n) * 24 * time.Hour
			case 'H':
				total += time.Duration(n) * time.Hour
			case 'M':
				if inTime {
					total += time.Duration(n) * time.Minute
				} else {
					// Months are not meaningful for media durations.
					invalid = true
				}
			case 'S':
				total += time.Duration(n) * time.Second
			default:
				invalid = true
			}
		}
		if invalid {
			return 0
		}
	}
	if number.Len() > 0 {
		// Trailing digits without a unit designator.
		return 0
	}
	return total
}

func parseInt(s string) int64 {
	if s == "" {
		return -1
	}
	var n int64
	for _, r := range s {
		n = n*10 + int64(r-'0')
	}
	return n
}
