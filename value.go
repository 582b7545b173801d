package hashcol

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindList
	KindMap
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

// Value is a tagged variant tree. The zero Value is null.
//
// Values are treated as immutable; maps and lists handed out by this package
// are fresh copies unless documented otherwise.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	t    time.Time
	list []Value
	m    *Map
}

func Null() Value               { return Value{} }
func Bool(v bool) Value         { return Value{kind: KindBool, b: v} }
func Number(v float64) Value    { return Value{kind: KindNumber, n: v} }
func Int(v int64) Value         { return Value{kind: KindNumber, n: float64(v)} }
func Text(v string) Value       { return Value{kind: KindText, s: v} }
func Time(v time.Time) Value    { return Value{kind: KindTime, t: v} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func MapOf(entries ...Entry) Value {
	return MapValue(NewMap(entries...))
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsMap() bool    { return v.kind == KindMap }
func (v Value) IsList() bool   { return v.kind == KindList }
func (v Value) Bool() bool     { return v.kind == KindBool && v.b }
func (v Value) Float() float64 { return v.n }
func (v Value) Int64() int64   { return int64(v.n) }
func (v Value) Str() string    { return v.s }

func (v Value) Time() time.Time { return v.t }

// Items returns the list elements. The slice must not be modified.
func (v Value) Items() []Value { return v.list }

// Map returns the underlying map, or nil for non-map values. The map must not
// be modified; use Clone first.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindText:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	case KindMap:
		return v.m.Equal(o.m)
	default:
		return false
	}
}

// Truthy follows the usual record-attribute query rules: null, false, zero,
// blank text and empty containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindText:
		return strings.TrimSpace(v.s) != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return v.m.Len() > 0
	case KindTime:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindMap:
		return MapValue(v.m.Clone())
	default:
		return v
	}
}

// Any converts the value into plain Go values: nil, bool, float64, string,
// time.Time, []any and map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindText:
		return v.s
	case KindTime:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		return v.m.Any()
	default:
		return nil
	}
}

// String renders the value for humans, quoting text.
func (v Value) String() string {
	var buf strings.Builder
	v.inspect(&buf)
	return buf.String()
}

func (v Value) inspect(buf *strings.Builder) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(formatNumber(v.n))
	case KindText:
		buf.WriteString(strconv.Quote(v.s))
	case KindTime:
		buf.WriteString(v.t.Format(time.RFC3339Nano))
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteString(", ")
			}
			item.inspect(buf)
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, e := range v.m.entries {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(e.Key)
			buf.WriteString(": ")
			e.Value.inspect(buf)
		}
		buf.WriteByte('}')
	}
}

func formatNumber(n float64) string {
	if isIntegral(n) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func isIntegral(n float64) bool {
	return n == math.Trunc(n) && math.Abs(n) < 1<<53
}

// FromAny normalizes a Go value into a Value. Map keys of any type are turned
// into their canonical string form, so "name" and a Stringer printing "name"
// address the same key.
func FromAny(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case *Map:
		return MapValue(x.Clone()), nil
	case bool:
		return Bool(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(string(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case float32:
		return Number(float64(x)), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(err, "invalid number %q", string(x))
		}
		return Number(f), nil
	case time.Time:
		return Time(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "[%d]", i)
			}
			items[i] = v
		}
		return List(items...), nil
	case []Value:
		return List(slices.Clone(x)...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := newMapCap(len(keys))
		for _, k := range keys {
			v, err := FromAny(x[k])
			if err != nil {
				return Value{}, errors.Wrapf(err, ".%s", k)
			}
			m.Set(k, v)
		}
		return MapValue(m), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "[%d]", i)
			}
			items[i] = v
		}
		return List(items...), nil
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		type kv struct {
			key string
			val reflect.Value
		}
		pairs := make([]kv, 0, rv.Len())
		for iter := rv.MapRange(); iter.Next(); {
			pairs = append(pairs, kv{canonicalKey(iter.Key().Interface()), iter.Value()})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
		m := newMapCap(len(pairs))
		for _, p := range pairs {
			v, err := FromAny(p.val.Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, ".%s", p.key)
			}
			m.Set(p.key, v)
		}
		return MapValue(m), nil
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	return Value{}, errors.Newf("unsupported value type %v", rv.Type())
}

// canonicalKey turns any map key into the single string form used by Map.
func canonicalKey(k any) string {
	switch k := k.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case Value:
		if k.kind == KindText {
			return k.s
		}
		return k.String()
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
