/*
	This file handles the element types a label or intensity volume may hold.
*/

package npil

import (
	"encoding/json"
	"fmt"
	"math"
)

// DataType is a unique ID for each unsigned element type of a volume.  Labels are
// non-negative, so signed and floating point types are not supported.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_uint16
	T_uint32
	T_uint64
)

var typeBytes = map[DataType]int{
	T_uint8:  1,
	T_uint16: 2,
	T_uint32: 4,
	T_uint64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:  "uint8",
	T_uint16: "uint16",
	T_uint32: "uint32",
	T_uint64: "uint64",
}

// Bytes returns the # of bytes for one element of the given type.
func (t DataType) Bytes() int {
	return typeBytes[t]
}

// Max returns the largest value representable by the type.
func (t DataType) Max() uint64 {
	switch t {
	case T_uint8:
		return math.MaxUint8
	case T_uint16:
		return math.MaxUint16
	case T_uint32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// Valid returns true if the type is one of the known element types.
func (t DataType) Valid() bool {
	_, found := typeBytes[t]
	return found
}

func (t DataType) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return fmt.Sprintf("unknown type %d", uint8(t))
}

// ParseDataType returns the DataType for a name like "uint16".
func ParseDataType(s string) (DataType, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// DataTypeFor returns the smallest type that can hold the given value.
func DataTypeFor(value uint64) DataType {
	switch {
	case value <= math.MaxUint8:
		return T_uint8
	case value <= math.MaxUint16:
		return T_uint16
	case value <= math.MaxUint32:
		return T_uint32
	default:
		return T_uint64
	}
}

// Wider returns the wider of the two types.
func (t DataType) Wider(t2 DataType) DataType {
	if t2.Bytes() > t.Bytes() {
		return t2
	}
	return t
}

// MarshalJSON implements the json.Marshaler interface.
func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}
