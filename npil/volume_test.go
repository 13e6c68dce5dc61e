package npil

import (
	"testing"
)

func TestVolumeOffset(t *testing.T) {
	vol, err := NewVolume(T_uint16, 2, 3, 4)
	if err != nil {
		t.Fatalf("unable to create volume: %v\n", err)
	}
	if vol.NumVoxels() != 24 {
		t.Errorf("expected 24 voxels, got %d\n", vol.NumVoxels())
	}
	tests := []struct {
		index  []int
		offset int
		ok     bool
	}{
		{[]int{0, 0, 0}, 0, true},
		{[]int{0, 0, 3}, 3, true},
		{[]int{0, 1, 0}, 4, true},
		{[]int{1, 0, 0}, 12, true},
		{[]int{1, 2, 3}, 23, true},
		{[]int{2, 0, 0}, 0, false},
		{[]int{0, -1, 0}, 0, false},
		{[]int{0, 0}, 0, false},
	}
	for _, tc := range tests {
		offset, ok := vol.Offset(tc.index)
		if ok != tc.ok {
			t.Errorf("index %v: expected in-bounds %t, got %t\n", tc.index, tc.ok, ok)
			continue
		}
		if ok && offset != tc.offset {
			t.Errorf("index %v: expected offset %d, got %d\n", tc.index, tc.offset, offset)
		}
	}
}

func TestVolumeFromDataChecksRange(t *testing.T) {
	if _, err := NewVolumeFromData(T_uint8, []uint64{1, 256}, 2); err == nil {
		t.Errorf("expected error for value outside uint8 range\n")
	}
	if _, err := NewVolumeFromData(T_uint8, []uint64{1, 2, 3}, 2); err == nil {
		t.Errorf("expected error for element count mismatch\n")
	}
	vol, err := NewVolumeFromData(T_uint8, []uint64{1, 255}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if v, _ := vol.Value(1); v != 255 {
		t.Errorf("expected 255, got %d\n", v)
	}
	if err := vol.SetValue(300, 0); err == nil {
		t.Errorf("expected error setting value outside uint8 range\n")
	}
}

func TestVolumeSliceAndStack(t *testing.T) {
	data := []uint64{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		10, 11, 12,
	}
	vol, err := NewVolumeFromData(T_uint16, data, 2, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	slice, err := vol.Slice(1)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	shape := slice.Shape()
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("bad slice shape: %v\n", shape)
	}
	if v, _ := slice.Value(1, 2); v != 12 {
		t.Errorf("expected 12 at (1,2) of slice 1, got %d\n", v)
	}
	slice.Data()[0] = 99
	if v, _ := vol.Value(1, 0, 0); v != 7 {
		t.Errorf("slice should be a copy, original changed to %d\n", v)
	}
	if _, err := vol.Slice(2); err == nil {
		t.Errorf("expected error on out of range slice\n")
	}

	s0, _ := vol.Slice(0)
	s1, _ := vol.Slice(1)
	stacked, err := Stack([]*Volume{s0, s1})
	if err != nil {
		t.Fatalf("unable to stack: %v\n", err)
	}
	if !stacked.SameShape(vol) {
		t.Errorf("stacked shape %v != original %v\n", stacked.Shape(), vol.Shape())
	}
	for i, v := range stacked.Data() {
		if v != data[i] {
			t.Errorf("element %d: expected %d, got %d\n", i, data[i], v)
		}
	}

	odd, _ := NewVolume(T_uint8, 3, 3)
	if _, err := Stack([]*Volume{s0, odd}); err == nil {
		t.Errorf("expected error stacking mismatched shapes\n")
	}
}

func TestVolumeMarshal(t *testing.T) {
	for _, dtype := range []DataType{T_uint8, T_uint16, T_uint32, T_uint64} {
		vol, _ := NewVolume(dtype, 3, 2)
		vol.Data()[1] = 7
		vol.Data()[5] = dtype.Max()
		b, err := vol.MarshalBinary()
		if err != nil {
			t.Fatalf("unable to marshal %s volume: %v\n", dtype, err)
		}
		var got Volume
		if err := got.UnmarshalBinary(b); err != nil {
			t.Fatalf("unable to unmarshal %s volume: %v\n", dtype, err)
		}
		if got.DataType() != dtype || !got.SameShape(vol) {
			t.Errorf("got %s, expected %s\n", got.String(), vol.String())
		}
		for i := range vol.Data() {
			if got.Data()[i] != vol.Data()[i] {
				t.Errorf("%s element %d: expected %d, got %d\n", dtype, i, vol.Data()[i], got.Data()[i])
			}
		}
	}
	var bad Volume
	if err := bad.UnmarshalBinary([]byte{byte(T_uint8), 1, 4, 0, 0, 0, 1, 2}); err == nil {
		t.Errorf("expected error on truncated payload\n")
	}
}

func TestDataTypeFor(t *testing.T) {
	tests := map[uint64]DataType{
		0:       T_uint8,
		255:     T_uint8,
		256:     T_uint16,
		65535:   T_uint16,
		65536:   T_uint32,
		1 << 32: T_uint64,
	}
	for value, expected := range tests {
		if got := DataTypeFor(value); got != expected {
			t.Errorf("value %d: expected %s, got %s\n", value, expected, got)
		}
	}
	if dt, err := ParseDataType("uint32"); err != nil || dt != T_uint32 {
		t.Errorf("bad parse of uint32: %s, %v\n", dt, err)
	}
	if _, err := ParseDataType("float32"); err == nil {
		t.Errorf("expected error parsing float32\n")
	}
}
