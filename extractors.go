package pulsemeter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jpalmerr/pulsemeter/internal/extract"
)

// ValueExtractor is a function type that resolves a numeric reading from a
// response body.
//
// It returns the value and true on a hit, or false when the body holds no
// usable number. A miss is not an error: the poll is still counted and logged
// as "Response received (no numeric value found)", but no sample is recorded.
//
// # Panic Safety
//
// ValueExtractor functions are called within a panic recovery boundary. A
// panicking extractor is treated as a miss and the stack is logged with a
// correlation ID.
type ValueExtractor func(body []byte) (value float64, ok bool)

// DefaultValueExtractor applies the built-in resolution rules.
//
// Numbers are used as-is. For objects the keys value, temp, suhu,
// temperature, humidity, kelembaban and data are tried in that order, then the
// first numeric member in document order, then the same rules are applied to
// a nested "data" object or array. For arrays the first numeric element wins.
// Strings, booleans and null never yield a value.
//
// This is the extractor used when [WithExtractor] is not specified.
func DefaultValueExtractor(body []byte) (float64, bool) {
	return extract.NumericValue(extract.Decode(body))
}

// JSONPathExtractor creates an extractor that reads the value at path.
//
// The path uses gjson syntax: dot-separated keys with numeric array indices,
// e.g. "sensor.temperature" or "readings.0.value". Numbers are used as-is,
// numeric strings are parsed, and objects or arrays found at the path are
// resolved with the [DefaultValueExtractor] rules.
//
// Example:
//
//	// body: {"sensor": {"temperature": 24.8, "humidity": 61}}
//	ext := pulsemeter.JSONPathExtractor("sensor.humidity") // 61
func JSONPathExtractor(path string) ValueExtractor {
	return func(body []byte) (float64, bool) {
		if !gjson.ValidBytes(body) {
			return 0, false
		}
		r := gjson.GetBytes(body, path)
		switch r.Type {
		case gjson.Number:
			return r.Num, true
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
			if err != nil {
				return 0, false
			}
			return f, true
		case gjson.JSON:
			return extract.NumericValue(extract.Decode([]byte(r.Raw)))
		default:
			return 0, false
		}
	}
}

// RegexExtractor creates an extractor for plain-text bodies.
//
// The pattern must contain at least one capture group; the first group is
// parsed as a float. Useful for devices that answer with text such as
// "temp=23.4C".
//
// Returns an error if the pattern is invalid or has no capture group.
//
// Example:
//
//	ext, err := pulsemeter.RegexExtractor(`temp=([-0-9.]+)`)
func RegexExtractor(pattern string) (ValueExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("regex pattern %q has no capture group", pattern)
	}

	return func(body []byte) (float64, bool) {
		m := re.FindSubmatch(body)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}, nil
}

// MustRegexExtractor is like [RegexExtractor] but panics on error.
// Use only with compile-time constant patterns.
func MustRegexExtractor(pattern string) ValueExtractor {
	ext, err := RegexExtractor(pattern)
	if err != nil {
		panic(err)
	}
	return ext
}

// FirstMatch creates an extractor that tries each extractor in order and
// returns the first hit. Nil extractors are skipped.
//
// Example:
//
//	ext := pulsemeter.FirstMatch(
//	    pulsemeter.JSONPathExtractor("payload.reading"),
//	    pulsemeter.DefaultValueExtractor,
//	)
func FirstMatch(extractors ...ValueExtractor) ValueExtractor {
	return func(body []byte) (float64, bool) {
		for _, ext := range extractors {
			if ext == nil {
				continue
			}
			if v, ok := ext(body); ok {
				return v, true
			}
		}
		return 0, false
	}
}
