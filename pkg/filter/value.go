package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDate
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "str"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a typed comparison operand.
type Value struct {
	kind  Kind
	str   string
	num   int64
	float float64
	flag  bool
	date  time.Time
	items []Value
}

// String wraps a string operand.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer operand.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float wraps a floating point operand.
func Float(f float64) Value { return Value{kind: KindFloat, float: f} }

// Bool wraps a boolean operand.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Date wraps a timestamp operand. It is stored in UTC.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t.UTC()} }

// List wraps the operands of an $in comparison.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Items returns the elements of a list value.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Native returns the Go value handed to the store driver.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindInt:
		return v.num
	case KindFloat:
		return v.float
	case KindBool:
		return v.flag
	case KindDate:
		return v.date
	case KindList:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	default:
		return v.str
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.num == other.num
	case KindFloat:
		return v.float == other.float
	case KindBool:
		return v.flag == other.flag
	case KindDate:
		return v.date.Equal(other.date)
	case KindList:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	default:
		return v.str == other.str
	}
}

// String renders the value as an explicitly tagged token. Parse reads it back unchanged only
// when the token has no whitespace; list elements must also be free of commas.
func (v Value) String() string {
	switch v.kind {
	case KindList:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	default:
		return v.kind.String() + ":" + v.literal()
	}
}

func (v Value) literal() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindDate:
		return v.date.Format(time.RFC3339Nano)
	default:
		return v.str
	}
}

const dateOnly = "2006-01-02"

// parseTagged parses literal strictly as kind.
func parseTagged(kind Kind, literal string) (Value, error) {
	switch kind {
	case KindString:
		return String(literal), nil
	case KindInt:
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int %q", literal)
		}
		return Int(n), nil
	case KindFloat:
		f, ok := parseDecimal(literal)
		if !ok {
			return Value{}, fmt.Errorf("invalid float %q", literal)
		}
		return Float(f), nil
	case KindBool:
		switch literal {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("invalid bool %q", literal)
	case KindDate:
		if t, err := time.Parse(time.RFC3339Nano, literal); err == nil {
			return Date(t), nil
		}
		if t, err := time.Parse(dateOnly, literal); err == nil {
			return Date(t), nil
		}
		return Value{}, fmt.Errorf("invalid date %q", literal)
	default:
		return Value{}, fmt.Errorf("unknown value kind %s", kind)
	}
}

// coerce applies the untagged conversion order: integer, float, boolean, string.
// It is lossy by nature: "0123" becomes 123.
func coerce(token string) Value {
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return Int(n)
	}
	if f, ok := parseDecimal(token); ok {
		return Float(f)
	}
	switch token {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(token)
}

// parseDecimal accepts finite decimal notation only, so "inf", "NaN" and hex floats stay strings.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	digits := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r == '.' || r == 'e' || r == 'E':
		case (r == '+' || r == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		default:
			return 0, false
		}
	}
	if !digits {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

var tags = map[string]Kind{
	"str":   KindString,
	"int":   KindInt,
	"float": KindFloat,
	"bool":  KindBool,
	"date":  KindDate,
}

// splitTag separates a recognised "<tag>:" prefix from token.
func splitTag(token string) (Kind, string, bool) {
	i := strings.IndexByte(token, ':')
	if i <= 0 {
		return 0, token, false
	}
	kind, ok := tags[token[:i]]
	if !ok {
		return 0, token, false
	}
	return kind, token[i+1:], true
}
