package provisionql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntitlementKind identifies the variant held by an EntitlementValue.
type EntitlementKind int

const (
	EntitlementInvalid EntitlementKind = iota
	EntitlementStringKind
	EntitlementBoolKind
	EntitlementArrayKind
	EntitlementDictionaryKind
)

// EntitlementValue is a normalized entitlement: a string, a bool, a list of
// strings or a string-to-string dictionary. Numbers are carried as strings.
type EntitlementValue struct {
	kind EntitlementKind
	str  string
	b    bool
	arr  []string
	dict map[string]string
}

func EntitlementString(s string) EntitlementValue {
	return EntitlementValue{kind: EntitlementStringKind, str: s}
}

func EntitlementBool(b bool) EntitlementValue {
	return EntitlementValue{kind: EntitlementBoolKind, b: b}
}

func EntitlementArray(items []string) EntitlementValue {
	if items == nil {
		items = []string{}
	}
	return EntitlementValue{kind: EntitlementArrayKind, arr: items}
}

func EntitlementDictionary(m map[string]string) EntitlementValue {
	if m == nil {
		m = map[string]string{}
	}
	return EntitlementValue{kind: EntitlementDictionaryKind, dict: m}
}

func (e EntitlementValue) Kind() EntitlementKind { return e.kind }

func (e EntitlementValue) AsString() (string, bool) { return e.str, e.kind == EntitlementStringKind }
func (e EntitlementValue) AsBool() (bool, bool)     { return e.b, e.kind == EntitlementBoolKind }
func (e EntitlementValue) AsArray() ([]string, bool) {
	return e.arr, e.kind == EntitlementArrayKind
}
func (e EntitlementValue) AsDictionary() (map[string]string, bool) {
	return e.dict, e.kind == EntitlementDictionaryKind
}

// Equal reports whether e and other hold the same variant and contents.
func (e EntitlementValue) Equal(other EntitlementValue) bool {
	if e.kind != other.kind {
		return false
	}
	switch e.kind {
	case EntitlementStringKind:
		return e.str == other.str
	case EntitlementBoolKind:
		return e.b == other.b
	case EntitlementArrayKind:
		if len(e.arr) != len(other.arr) {
			return false
		}
		for i := range e.arr {
			if e.arr[i] != other.arr[i] {
				return false
			}
		}
		return true
	case EntitlementDictionaryKind:
		if len(e.dict) != len(other.dict) {
			return false
		}
		for k, v := range e.dict {
			if ov, ok := other.dict[k]; !ok || ov != v {
				return false
			}
		}
		return true
	}
	return true
}

// String renders the value on one line.
func (e EntitlementValue) String() string {
	switch e.kind {
	case EntitlementStringKind:
		return e.str
	case EntitlementBoolKind:
		return strconv.FormatBool(e.b)
	case EntitlementArrayKind:
		return "[" + strings.Join(e.arr, ", ") + "]"
	case EntitlementDictionaryKind:
		keys := make([]string, 0, len(e.dict))
		for k := range e.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+e.dict[k])
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	}
	return ""
}

func (e EntitlementValue) underlying() interface{} {
	switch e.kind {
	case EntitlementStringKind:
		return e.str
	case EntitlementBoolKind:
		return e.b
	case EntitlementArrayKind:
		return e.arr
	case EntitlementDictionaryKind:
		return e.dict
	}
	return nil
}

// MarshalJSON encodes the bare underlying value.
func (e EntitlementValue) MarshalJSON() ([]byte, error) {
	if e.kind == EntitlementInvalid {
		return nil, fmt.Errorf("cannot marshal empty entitlement value")
	}
	return json.Marshal(e.underlying())
}

// UnmarshalJSON accepts a string, bool, string array or string map, trying
// them in that order. Numbers are kept as their string form.
func (e *EntitlementValue) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return fmt.Errorf("unsupported entitlement value: null")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = EntitlementString(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*e = EntitlementBool(b)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && arr != nil {
		*e = EntitlementArray(arr)
		return nil
	}
	var dict map[string]string
	if err := json.Unmarshal(data, &dict); err == nil && dict != nil {
		*e = EntitlementDictionary(dict)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*e = EntitlementString(numberString(n))
		return nil
	}
	return fmt.Errorf("unsupported entitlement value: %s", data)
}

// MarshalYAML encodes the bare underlying value.
func (e EntitlementValue) MarshalYAML() (interface{}, error) {
	return e.underlying(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (e *EntitlementValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			*e = EntitlementBool(b)
		case "!!int", "!!float":
			*e = EntitlementString(numberString(json.Number(node.Value)))
		default:
			*e = EntitlementString(node.Value)
		}
		return nil
	case yaml.SequenceNode:
		var arr []string
		if err := node.Decode(&arr); err != nil {
			return err
		}
		*e = EntitlementArray(arr)
		return nil
	case yaml.MappingNode:
		var dict map[string]string
		if err := node.Decode(&dict); err != nil {
			return err
		}
		*e = EntitlementDictionary(dict)
		return nil
	}
	return fmt.Errorf("unsupported entitlement node at line %d", node.Line)
}

func numberString(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return formatReal(f)
	}
	return n.String()
}

// formatReal prints a float the way plist tools do: shortest form, with a
// trailing ".0" for integral values.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// scalarString coerces a scalar plist value to a string.
func scalarString(v Value) (string, bool) {
	switch v.Kind() {
	case StringKind:
		return v.str, true
	case BoolKind:
		return strconv.FormatBool(v.boolv), true
	case IntegerKind:
		return strconv.FormatInt(v.intv, 10), true
	case RealKind:
		return formatReal(v.real), true
	}
	return "", false
}

// entitlementValueOf narrows a plist value. Data, dates and values that
// only nest deeper than one level report false.
func entitlementValueOf(v Value) (EntitlementValue, bool) {
	switch v.Kind() {
	case StringKind:
		return EntitlementString(v.str), true
	case BoolKind:
		return EntitlementBool(v.boolv), true
	case IntegerKind, RealKind:
		s, _ := scalarString(v)
		return EntitlementString(s), true
	case ArrayKind:
		items := make([]string, 0, len(v.array))
		for _, item := range v.array {
			if s, ok := scalarString(item); ok {
				items = append(items, s)
			}
		}
		return EntitlementArray(items), true
	case DictKind:
		m := make(map[string]string, len(v.dict))
		for k, item := range v.dict {
			if s, ok := scalarString(item); ok {
				m[k] = s
			}
		}
		return EntitlementDictionary(m), true
	}
	return EntitlementValue{}, false
}

// EntitlementsFromDict normalizes a decoded entitlements dictionary,
// dropping entries that cannot be represented.
func EntitlementsFromDict(d Dict) map[string]EntitlementValue {
	out := make(map[string]EntitlementValue, len(d))
	for k, v := range d {
		if ev, ok := entitlementValueOf(v); ok {
			out[k] = ev
		}
	}
	return out
}

// EntitlementsFromMap normalizes entitlements held as plain Go values, as
// produced by the plist library.
func EntitlementsFromMap(m map[string]interface{}) map[string]EntitlementValue {
	return EntitlementsFromDict(dictOf(m))
}

// SortedEntitlementKeys returns the keys of m in lexical order.
func SortedEntitlementKeys(m map[string]EntitlementValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
