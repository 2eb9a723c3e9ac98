// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"fmt"
	"strconv"
	"time"
)

// Kind tags the type a Value holds.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
	KindDate
	KindTimestamp
)

var kindNames = [...]string{"null", "text", "int", "float", "bool", "date", "timestamp"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is one typed cell. The zero Value is NULL.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a calendar date; the time of day is discarded.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Timestamp returns an instant, stored in UTC.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

// Kind reports the held kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// String renders the value the way warehouses cast it to text. NULL renders
// as the empty string; use IsNull to tell the two apart.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(time.DateOnly)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Canonical is a kind-tagged encoding used for payload comparison, so that
// Int(1) and Text("1") differ and NULL differs from "".
func (v Value) Canonical() string {
	if v.kind == KindNull {
		return "\x00"
	}
	return v.kind.String() + ":" + v.String()
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	default:
		return v.t.Equal(o.t)
	}
}

// SQLValue returns the database/sql argument for v.
func (v Value) SQLValue() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate, KindTimestamp:
		return v.t
	default:
		return nil
	}
}

// Int64 returns the integer content and whether v is an Int.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Float64 returns the float content and whether v is a Float.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == KindFloat }

// Time returns the time content and whether v is a Date or Timestamp.
func (v Value) Time() (time.Time, bool) {
	return v.t, v.kind == KindDate || v.kind == KindTimestamp
}

// FromSQL converts a value scanned into an any destination. Drivers differ
// in the integer widths they return; all become Int.
func FromSQL(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case int64:
		return Int(x)
	case int32:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case bool:
		return Bool(x)
	case time.Time:
		return Timestamp(x)
	default:
		return Text(fmt.Sprint(x))
	}
}
