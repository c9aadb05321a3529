package docstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Str returns the string value of key, or "" when absent or not a string.
func (f Fields) Str(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool returns the bool value of key, or false when absent or not a bool.
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Decimal returns the numeric value of key. Decimal strings and JSON numbers
// are accepted; anything else reads as zero.
func (f Fields) Decimal(key string) decimal.Decimal {
	switch v := f[key].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}

		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}

	return decimal.Zero
}

// Time returns the RFC 3339 timestamp stored at key.
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}

		return t.UTC(), true
	case float64:
		// Milliseconds since the epoch.
		return time.UnixMilli(int64(v)).UTC(), true
	}

	return time.Time{}, false
}

// FormatTime renders t the way Time reads it back.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
