package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalize renders a cell value into the canonical string form used for
// column diffing: nil becomes the empty string, strings are trimmed, temporal
// values become UTC ISO-8601 with a literal Z suffix, and everything else is
// its plain string form. Equality after Normalize is exact string equality;
// no case folding happens here (case folding belongs to key matching only).
func Normalize(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05Z")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// NormalizeKeyComponent renders a cell value into the canonical form used for
// composite key components. Numeric-looking values are truncated to their
// integer part and rendered in decimal ("010" and "10.0" both become "10");
// everything else is trimmed and lower-cased. An empty result marks the
// component as missing.
func NormalizeKeyComponent(val interface{}) string {
	if val == nil {
		return ""
	}

	s := strings.TrimSpace(fmt.Sprint(val))
	if s == "" {
		return ""
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}

	return strings.ToLower(s)
}
