package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// FieldType is the primitive type of a schema field.
type FieldType uint8

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeText
	FieldTypeBool
	FieldTypeUint
	FieldTypeBytes
	FieldTypeBytes32
	FieldTypeAddress
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeText:
		return "string"
	case FieldTypeBool:
		return "bool"
	case FieldTypeUint:
		return "uint256"
	case FieldTypeBytes:
		return "bytes"
	case FieldTypeBytes32:
		return "bytes32"
	case FieldTypeAddress:
		return "address"
	default:
		return "unknown"
	}
}

func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return FieldTypeText, nil
	case "bool":
		return FieldTypeBool, nil
	case "uint256":
		return FieldTypeUint, nil
	case "bytes":
		return FieldTypeBytes, nil
	case "bytes32":
		return FieldTypeBytes32, nil
	case "address":
		return FieldTypeAddress, nil
	default:
		return FieldTypeUnknown, fmt.Errorf("unknown field type: %q", s)
	}
}

func (t FieldType) MarshalText() ([]byte, error) {
	if t == FieldTypeUnknown {
		return nil, fmt.Errorf("cannot marshal unknown field type")
	}
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type FieldDefinition struct {
	Type FieldType `json:"type"`
	Name string    `json:"name"`
}

// FieldValue is a tagged union over the primitive field types. Only the
// member selected by Type is meaningful.
type FieldValue struct {
	Type    FieldType
	Name    string
	Text    string
	Bool    bool
	Uint    *uint256.Int
	Bytes   []byte
	Bytes32 common.Hash
	Address common.Address
}

func TextValue(name, v string) FieldValue {
	return FieldValue{Type: FieldTypeText, Name: name, Text: v}
}

func BoolValue(name string, v bool) FieldValue {
	return FieldValue{Type: FieldTypeBool, Name: name, Bool: v}
}

func UintValue(name string, v *uint256.Int) FieldValue {
	return FieldValue{Type: FieldTypeUint, Name: name, Uint: v}
}

func BytesValue(name string, v []byte) FieldValue {
	return FieldValue{Type: FieldTypeBytes, Name: name, Bytes: v}
}

func Bytes32Value(name string, v common.Hash) FieldValue {
	return FieldValue{Type: FieldTypeBytes32, Name: name, Bytes32: v}
}

func AddressValue(name string, v common.Address) FieldValue {
	return FieldValue{Type: FieldTypeAddress, Name: name, Address: v}
}

// Encode returns the canonical byte form of the selected member.
func (v FieldValue) Encode() []byte {
	switch v.Type {
	case FieldTypeText:
		return []byte(v.Text)
	case FieldTypeBool:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case FieldTypeUint:
		if v.Uint == nil {
			return make([]byte, 32)
		}
		b := v.Uint.Bytes32()
		return b[:]
	case FieldTypeBytes:
		return v.Bytes
	case FieldTypeBytes32:
		return v.Bytes32.Bytes()
	case FieldTypeAddress:
		return v.Address.Bytes()
	default:
		return nil
	}
}

// Display returns the JSON friendly representation of the selected member.
func (v FieldValue) Display() any {
	switch v.Type {
	case FieldTypeText:
		return v.Text
	case FieldTypeBool:
		return v.Bool
	case FieldTypeUint:
		if v.Uint == nil {
			return "0"
		}
		return v.Uint.Dec()
	case FieldTypeBytes:
		return hexutil.Encode(v.Bytes)
	case FieldTypeBytes32:
		return v.Bytes32.Hex()
	case FieldTypeAddress:
		return v.Address.Hex()
	default:
		return nil
	}
}

func (v FieldValue) Equal(other FieldValue) bool {
	return v.Type == other.Type && v.Name == other.Name && bytes.Equal(v.Encode(), other.Encode())
}

type fieldValueJSON struct {
	Type  FieldType       `json:"type"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Display())
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Type: v.Type, Name: v.Name, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	var aux fieldValueJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	out := FieldValue{Type: aux.Type, Name: aux.Name}
	switch aux.Type {
	case FieldTypeBool:
		if err := json.Unmarshal(aux.Value, &out.Bool); err != nil {
			return fmt.Errorf("field %s: %w", aux.Name, err)
		}
	default:
		var s string
		if err := json.Unmarshal(aux.Value, &s); err != nil {
			return fmt.Errorf("field %s: %w", aux.Name, err)
		}
		if err := out.setFromString(s); err != nil {
			return fmt.Errorf("field %s: %w", aux.Name, err)
		}
	}

	*v = out
	return nil
}

func (v *FieldValue) setFromString(s string) error {
	switch v.Type {
	case FieldTypeText:
		v.Text = s
	case FieldTypeUint:
		n, err := uint256.FromDecimal(s)
		if err != nil {
			return err
		}
		v.Uint = n
	case FieldTypeBytes:
		b, err := hexutil.Decode(s)
		if err != nil {
			return err
		}
		v.Bytes = b
	case FieldTypeBytes32:
		b, err := hexutil.Decode(s)
		if err != nil {
			return err
		}
		if len(b) != common.HashLength {
			return fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
		}
		v.Bytes32 = common.BytesToHash(b)
	case FieldTypeAddress:
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid address: %q", s)
		}
		v.Address = common.HexToAddress(s)
	default:
		return fmt.Errorf("unsupported field type %d", v.Type)
	}
	return nil
}
