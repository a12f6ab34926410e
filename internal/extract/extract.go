package extract

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKeys are probed, in order, for the telemetry reading of an object.
var ValueKeys = []string{"value", "temp", "suhu", "temperature", "humidity", "kelembaban", "data"}

// TimestampKeys are probed, in order, for the reading time of an object.
var TimestampKeys = []string{"timestamp", "time", "waktu", "datetime", "created_at"}

// envelopeKey names the member that commonly wraps the reading, as in
// {"data": {"temperature": 26.5}}.
const envelopeKey = "data"

// epoch numbers below this are seconds, at or above it milliseconds
const epochMillisThreshold = 1e11

// maxEpochMillis is 9999-12-31T23:59:59.999Z, the last instant a timestamp
// can be encoded as RFC3339.
const maxEpochMillis = 253402300799999

// timestampLayouts are tried in order when a timestamp is a string.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// NumericValue resolves the telemetry reading of a payload.
//
// Resolution order:
//  1. a number is returned as-is
//  2. for an object, the first of [ValueKeys] holding a number
//  3. for an object, the first numeric member in document order
//  4. for an object whose "data" member is an object or array, steps 1-5 on it
//  5. for an array, the first numeric element
//
// Numbers that overflow float64 (such as 1e999) or are otherwise not finite
// never count as numeric.
//
// A miss (ok == false) is an ordinary outcome, not an error.
func NumericValue(v Value) (value float64, ok bool) {
	switch v.Kind {
	case KindNumber:
		if !Finite(v.Num) {
			return 0, false
		}
		return v.Num, true

	case KindObject:
		for _, key := range ValueKeys {
			if m, found := v.Lookup(key); found && isNumeric(m) {
				return m.Num, true
			}
		}
		for _, m := range v.Members {
			if isNumeric(m.Value) {
				return m.Value.Num, true
			}
		}
		if env, found := v.Lookup(envelopeKey); found && (env.Kind == KindObject || env.Kind == KindArray) {
			return NumericValue(env)
		}
		return 0, false

	case KindArray:
		for _, e := range v.Elems {
			if isNumeric(e) {
				return e.Num, true
			}
		}
		return 0, false

	default:
		return 0, false
	}
}

// Finite reports whether n is neither infinite nor NaN.
func Finite(n float64) bool {
	return !math.IsInf(n, 0) && !math.IsNaN(n)
}

func isNumeric(v Value) bool {
	return v.Kind == KindNumber && Finite(v.Num)
}

// Timestamp resolves the reading time of a payload.
//
// The first of [TimestampKeys] present in an object is parsed; strings are
// tried against RFC3339 and common variants, numbers (and numeric strings)
// are Unix epochs in seconds or milliseconds. When the payload is not an
// object, no key is present, or the value cannot be parsed or lies outside
// years 0-9999, now is returned.
func Timestamp(v Value, now time.Time) time.Time {
	if v.Kind != KindObject {
		return now
	}
	for _, key := range TimestampKeys {
		m, found := v.Lookup(key)
		if !found {
			continue
		}
		if ts, ok := parseTimestamp(m); ok {
			return ts
		}
		return now
	}
	return now
}

func parseTimestamp(v Value) (time.Time, bool) {
	switch v.Kind {
	case KindNumber:
		return fromEpoch(v.Num)
	case KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, encodable(ts)
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func fromEpoch(n float64) (time.Time, bool) {
	if !Finite(n) || n < 0 || n > maxEpochMillis {
		return time.Time{}, false
	}
	if n >= epochMillisThreshold {
		return time.UnixMilli(int64(n)), true
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// encodable reports whether ts fits the four-digit year range of RFC3339.
func encodable(ts time.Time) bool {
	y := ts.Year()
	return y >= 0 && y <= 9999
}

// Path walks v along a dot-separated path of object keys.
// An empty path returns v itself.
func Path(v Value, path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	current := v
	for _, part := range strings.Split(path, ".") {
		next, ok := current.Lookup(part)
		if !ok {
			return Null, false
		}
		current = next
	}
	return current, true
}
