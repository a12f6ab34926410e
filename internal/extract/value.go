package extract

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Kind identifies which JSON type a [Value] holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

// Value is a decoded JSON value.
//
// Exactly one payload field is meaningful for a given Kind: Bool for
// KindBool, Num for KindNumber, Str for KindString, Members for KindObject
// and Elems for KindArray. Object members keep document order; a repeated
// key keeps its first position and its last value.
type Value struct {
	Kind    Kind
	Bool    bool
	Num     float64
	Str     string
	Members []Member
	Elems   []Value
}

// Null is the zero Value.
var Null = Value{}

// Number returns a KindNumber value.
func Number(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// String returns a KindString value.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Object returns a KindObject value with the given members in order.
func Object(members ...Member) Value {
	return Value{Kind: KindObject, Members: members}
}

// Decode parses body into a Value.
//
// Decode never fails: an empty body decodes to [Null] and a body that is not
// valid JSON decodes to a KindString holding the raw text, which is how a
// plain-text response is seen by the extractor.
func Decode(body []byte) Value {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Null
	}
	if !gjson.ValidBytes(trimmed) {
		return String(string(body))
	}
	return fromResult(gjson.ParseBytes(trimmed))
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null
	case gjson.False:
		return Value{Kind: KindBool, Bool: false}
	case gjson.True:
		return Value{Kind: KindBool, Bool: true}
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		elems := []Value{}
		r.ForEach(func(_, v gjson.Result) bool {
			elems = append(elems, fromResult(v))
			return true
		})
		return Value{Kind: KindArray, Elems: elems}
	}

	members := []Member{}
	index := make(map[string]int)
	r.ForEach(func(k, v gjson.Result) bool {
		val := fromResult(v)
		if i, seen := index[k.Str]; seen {
			members[i].Value = val
			return true
		}
		index[k.Str] = len(members)
		members = append(members, Member{Key: k.Str, Value: val})
		return true
	})
	return Value{Kind: KindObject, Members: members}
}

// Lookup returns the member value stored under key.
// It reports false when v is not an object or the key is absent.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Null, false
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Null, false
}
