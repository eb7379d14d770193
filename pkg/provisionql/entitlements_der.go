package provisionql

import (
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"time"
)

// derEntitlementsMagic is CSMAGIC_EMBEDDED_DER_ENTITLEMENTS.
const derEntitlementsMagic = 0xfade7172

// DecodeEntitlementsDER decodes the DER form of an entitlements dictionary
// found in newer code signatures. The blob header is optional.
//
// Layout:
//   - Top-level: APPLICATION 16 { INTEGER 1, Dictionary }
//   - Dictionary: [16] { SEQUENCE { UTF8String key, Value }... }
//   - Array: SEQUENCE { Value... }
//   - Scalars: BOOLEAN, INTEGER, UTF8String
func DecodeEntitlementsDER(data []byte) (Dict, error) {
	if len(data) >= 8 && binary.BigEndian.Uint32(data[:4]) == derEntitlementsMagic {
		data = data[8:]
	}

	var top asn1.RawValue
	if _, err := asn1.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse DER entitlements: %w", err)
	}
	if top.Class != asn1.ClassApplication || top.Tag != 16 {
		return nil, fmt.Errorf("unexpected DER entitlements tag: class %d tag %d", top.Class, top.Tag)
	}

	var version int
	rest, err := asn1.Unmarshal(top.Bytes, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DER entitlements version: %w", err)
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported DER entitlements version %d", version)
	}

	var body asn1.RawValue
	if _, err := asn1.Unmarshal(rest, &body); err != nil {
		return nil, fmt.Errorf("failed to parse DER entitlements body: %w", err)
	}
	v, err := decodeDERValue(body)
	if err != nil {
		return nil, err
	}
	d, ok := v.AsDict()
	if !ok {
		return nil, fmt.Errorf("DER entitlements root is %s, not a dictionary", v.Kind())
	}
	return d, nil
}

func decodeDERDict(content []byte) (Dict, error) {
	d := make(Dict)
	for len(content) > 0 {
		var pair asn1.RawValue
		var err error
		content, err = asn1.Unmarshal(content, &pair)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dictionary entry: %w", err)
		}
		if pair.Tag != asn1.TagSequence {
			return nil, fmt.Errorf("dictionary entry has tag %d, want SEQUENCE", pair.Tag)
		}

		var key, value asn1.RawValue
		rest, err := asn1.Unmarshal(pair.Bytes, &key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dictionary key: %w", err)
		}
		if key.Tag != asn1.TagUTF8String {
			return nil, fmt.Errorf("dictionary key has tag %d, want UTF8String", key.Tag)
		}
		if _, err := asn1.Unmarshal(rest, &value); err != nil {
			return nil, fmt.Errorf("failed to parse value for key %s: %w", key.Bytes, err)
		}

		v, err := decodeDERValue(value)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key.Bytes, err)
		}
		d[string(key.Bytes)] = v
	}
	return d, nil
}

func decodeDERValue(raw asn1.RawValue) (Value, error) {
	if raw.Class == asn1.ClassContextSpecific && raw.Tag == 16 {
		d, err := decodeDERDict(raw.Bytes)
		if err != nil {
			return Value{}, err
		}
		return DictValue(d), nil
	}
	if raw.Class != asn1.ClassUniversal {
		return Value{}, fmt.Errorf("unsupported DER class %d", raw.Class)
	}

	switch raw.Tag {
	case asn1.TagBoolean:
		var b bool
		if _, err := asn1.Unmarshal(raw.FullBytes, &b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case asn1.TagInteger:
		var i int64
		if _, err := asn1.Unmarshal(raw.FullBytes, &i); err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	case asn1.TagUTF8String:
		return StringValue(string(raw.Bytes)), nil
	case asn1.TagOctetString:
		return DataValue(raw.Bytes), nil
	case asn1.TagGeneralizedTime:
		var t time.Time
		if _, err := asn1.UnmarshalWithParams(raw.FullBytes, &t, "generalized"); err != nil {
			return Value{}, err
		}
		return DateValue(t), nil
	case asn1.TagSequence:
		var items []Value
		content := raw.Bytes
		for len(content) > 0 {
			var item asn1.RawValue
			var err error
			content, err = asn1.Unmarshal(content, &item)
			if err != nil {
				return Value{}, fmt.Errorf("failed to parse array element: %w", err)
			}
			v, err := decodeDERValue(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ArrayValue(items...), nil
	}
	return Value{}, fmt.Errorf("unsupported DER tag %d", raw.Tag)
}
