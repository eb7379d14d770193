package provisionql

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"howett.net/plist"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	InvalidValue ValueKind = iota
	StringKind
	BoolKind
	IntegerKind
	RealKind
	ArrayKind
	DictKind
	DataKind
	DateKind
)

func (k ValueKind) String() string {
	switch k {
	case StringKind:
		return "string"
	case BoolKind:
		return "bool"
	case IntegerKind:
		return "integer"
	case RealKind:
		return "real"
	case ArrayKind:
		return "array"
	case DictKind:
		return "dict"
	case DataKind:
		return "data"
	case DateKind:
		return "date"
	}
	return "invalid"
}

// Value is a decoded property list value. It holds exactly one of the
// plist types; use Kind to discover which and the As* accessors to read it.
type Value struct {
	kind  ValueKind
	str   string
	boolv bool
	intv  int64
	real  float64
	array []Value
	dict  Dict
	data  []byte
	date  time.Time
}

// Dict is a decoded plist dictionary.
type Dict map[string]Value

func StringValue(s string) Value      { return Value{kind: StringKind, str: s} }
func BoolValue(b bool) Value          { return Value{kind: BoolKind, boolv: b} }
func IntValue(i int64) Value          { return Value{kind: IntegerKind, intv: i} }
func RealValue(f float64) Value       { return Value{kind: RealKind, real: f} }
func ArrayValue(items ...Value) Value { return Value{kind: ArrayKind, array: items} }
func DictValue(d Dict) Value          { return Value{kind: DictKind, dict: d} }
func DataValue(b []byte) Value        { return Value{kind: DataKind, data: b} }
func DateValue(t time.Time) Value     { return Value{kind: DateKind, date: t} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsString() (string, bool) { return v.str, v.kind == StringKind }
func (v Value) AsBool() (bool, bool)     { return v.boolv, v.kind == BoolKind }
func (v Value) AsInt() (int64, bool)     { return v.intv, v.kind == IntegerKind }
func (v Value) AsReal() (float64, bool)  { return v.real, v.kind == RealKind }
func (v Value) AsArray() ([]Value, bool) { return v.array, v.kind == ArrayKind }
func (v Value) AsDict() (Dict, bool)     { return v.dict, v.kind == DictKind }
func (v Value) AsData() ([]byte, bool)   { return v.data, v.kind == DataKind }
func (v Value) AsDate() (time.Time, bool) {
	return v.date, v.kind == DateKind
}

// Interface converts v back into the plain Go types used by the plist library.
func (v Value) Interface() interface{} {
	switch v.kind {
	case StringKind:
		return v.str
	case BoolKind:
		return v.boolv
	case IntegerKind:
		return v.intv
	case RealKind:
		return v.real
	case ArrayKind:
		items := make([]interface{}, 0, len(v.array))
		for _, item := range v.array {
			items = append(items, item.Interface())
		}
		return items
	case DictKind:
		return v.dict.Interface()
	case DataKind:
		return v.data
	case DateKind:
		return v.date
	}
	return nil
}

// Interface converts d into a map of plain Go values.
func (d Dict) Interface() map[string]interface{} {
	m := make(map[string]interface{}, len(d))
	for k, v := range d {
		m[k] = v.Interface()
	}
	return m
}

// Get returns the value stored under key.
func (d Dict) Get(key string) (Value, bool) {
	v, ok := d[key]
	return v, ok
}

// GetString returns the string stored under key. Other kinds report false.
func (d Dict) GetString(key string) (string, bool) {
	return d[key].AsString()
}

// NonEmptyString is like GetString but also reports false for "".
func (d Dict) NonEmptyString(key string) (string, bool) {
	s, ok := d.GetString(key)
	return s, ok && s != ""
}

func (d Dict) Bool(key string) (bool, bool) {
	return d[key].AsBool()
}

func (d Dict) Dict(key string) (Dict, bool) {
	return d[key].AsDict()
}

func (d Dict) Array(key string) ([]Value, bool) {
	return d[key].AsArray()
}

// Strings returns the string elements of the array stored under key,
// skipping elements of any other kind.
func (d Dict) Strings(key string) []string {
	items, _ := d.Array(key)
	var out []string
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Ints returns the integer elements of the array stored under key.
func (d Dict) Ints(key string) []int64 {
	items, _ := d.Array(key)
	var out []int64
	for _, item := range items {
		if i, ok := item.AsInt(); ok {
			out = append(out, i)
		}
	}
	return out
}

// DecodePlist decodes an XML, binary or OpenStep property list whose root
// is a dictionary.
func DecodePlist(data []byte) (Dict, error) {
	// the plist library reads blank input as an empty OpenStep dictionary
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPlistRoot)
	}
	var root interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlistRoot, err)
	}
	m, ok := root.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: root is %T", ErrInvalidPlistRoot, root)
	}
	return dictOf(m), nil
}

func dictOf(m map[string]interface{}) Dict {
	d := make(Dict, len(m))
	for k, raw := range m {
		if v, ok := valueOf(raw); ok {
			d[k] = v
		}
	}
	return d
}

// valueOf converts a value produced by the plist library. Types outside the
// plist model report false.
func valueOf(raw interface{}) (Value, bool) {
	switch v := raw.(type) {
	case Value:
		return v, true
	case string:
		return StringValue(v), true
	case bool:
		return BoolValue(v), true
	case int:
		return IntValue(int64(v)), true
	case int8:
		return IntValue(int64(v)), true
	case int16:
		return IntValue(int64(v)), true
	case int32:
		return IntValue(int64(v)), true
	case int64:
		return IntValue(v), true
	case uint:
		return uintValue(uint64(v)), true
	case uint8:
		return IntValue(int64(v)), true
	case uint16:
		return IntValue(int64(v)), true
	case uint32:
		return IntValue(int64(v)), true
	case uint64:
		return uintValue(v), true
	case plist.UID:
		return uintValue(uint64(v)), true
	case float32:
		// widen through the shortest decimal form so 3.14 stays 3.14
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
		return RealValue(f), true
	case float64:
		return RealValue(v), true
	case []byte:
		return DataValue(v), true
	case time.Time:
		return DateValue(v), true
	case []interface{}:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			if iv, ok := valueOf(item); ok {
				items = append(items, iv)
			}
		}
		return ArrayValue(items...), true
	case []string:
		items := make([]Value, 0, len(v))
		for _, s := range v {
			items = append(items, StringValue(s))
		}
		return ArrayValue(items...), true
	case map[string]interface{}:
		return DictValue(dictOf(v)), true
	case Dict:
		return DictValue(v), true
	}
	return Value{}, false
}

// uintValue keeps unsigned integers above the int64 range as reals.
func uintValue(u uint64) Value {
	if u > math.MaxInt64 {
		return RealValue(float64(u))
	}
	return IntValue(int64(u))
}
