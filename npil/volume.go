/*
	This file contains the dense N-dimensional volume used for both intensity images and labels.
*/

package npil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Volume is a dense, row-major N-dimensional array of non-negative integers.  The first
// axis is the slice axis, e.g., a z-stack has shape (z, y, x).  Values are held as uint64
// regardless of the DataType, which only describes the value domain of the volume.
type Volume struct {
	dtype DataType
	shape []int
	data  []uint64
}

// NewVolume returns a zeroed volume of the given type and shape.
func NewVolume(dtype DataType, shape ...int) (*Volume, error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("bad data type for volume: %s", dtype)
	}
	return &Volume{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  make([]uint64, n),
	}, nil
}

// NewVolumeFromData returns a volume using the given data slice, which must hold exactly
// as many elements as the shape requires.  The data slice is not copied.
func NewVolumeFromData(dtype DataType, data []uint64, shape ...int) (*Volume, error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("volume of shape %v needs %d elements, got %d", shape, n, len(data))
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("bad data type for volume: %s", dtype)
	}
	max := dtype.Max()
	for i, v := range data {
		if v > max {
			return nil, fmt.Errorf("element %d has value %d which exceeds %s range", i, v, dtype)
		}
	}
	return &Volume{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  data,
	}, nil
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("volume must have at least one dimension")
	}
	n := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("dimension %d has negative size %d", i, dim)
		}
		n *= dim
	}
	return n, nil
}

// DataType returns the value domain of the volume.
func (v *Volume) DataType() DataType {
	return v.dtype
}

// SetDataType changes the value domain.  Values outside the new domain cause an error.
func (v *Volume) SetDataType(dtype DataType) error {
	max := dtype.Max()
	for i, value := range v.data {
		if value > max {
			return fmt.Errorf("element %d has value %d which exceeds %s range", i, value, dtype)
		}
	}
	v.dtype = dtype
	return nil
}

// Shape returns a copy of the volume dimensions.
func (v *Volume) Shape() []int {
	return append([]int(nil), v.shape...)
}

// NumDims returns the dimensionality of the volume.
func (v *Volume) NumDims() int {
	return len(v.shape)
}

// NumVoxels returns the total number of elements.
func (v *Volume) NumVoxels() int {
	return len(v.data)
}

// Data returns the underlying element slice in row-major order.  Modifications
// are visible to the volume.
func (v *Volume) Data() []uint64 {
	return v.data
}

// SameShape returns true if both volumes have identical dimensions.
func (v *Volume) SameShape(v2 *Volume) bool {
	if len(v.shape) != len(v2.shape) {
		return false
	}
	for i := range v.shape {
		if v.shape[i] != v2.shape[i] {
			return false
		}
	}
	return true
}

// Offset returns the element offset for the given index and whether the index
// is within bounds.
func (v *Volume) Offset(index []int) (int, bool) {
	if len(index) != len(v.shape) {
		return 0, false
	}
	var offset int
	for dim, i := range index {
		if i < 0 || i >= v.shape[dim] {
			return 0, false
		}
		offset = offset*v.shape[dim] + i
	}
	return offset, true
}

// Value returns the element at the index or an error if the index is out of bounds.
func (v *Volume) Value(index ...int) (uint64, error) {
	offset, ok := v.Offset(index)
	if !ok {
		return 0, fmt.Errorf("index %v out of bounds for volume of shape %v", index, v.shape)
	}
	return v.data[offset], nil
}

// SetValue sets the element at the index.
func (v *Volume) SetValue(value uint64, index ...int) error {
	offset, ok := v.Offset(index)
	if !ok {
		return fmt.Errorf("index %v out of bounds for volume of shape %v", index, v.shape)
	}
	if value > v.dtype.Max() {
		return fmt.Errorf("value %d exceeds %s range", value, v.dtype)
	}
	v.data[offset] = value
	return nil
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	return &Volume{
		dtype: v.dtype,
		shape: append([]int(nil), v.shape...),
		data:  append([]uint64(nil), v.data...),
	}
}

// NumSlices returns the size of the first axis.
func (v *Volume) NumSlices() int {
	if len(v.shape) == 0 {
		return 0
	}
	return v.shape[0]
}

// Slice returns a copy of the i-th cross-section along the first axis.  A 1-d volume
// has no slices.
func (v *Volume) Slice(i int) (*Volume, error) {
	if len(v.shape) < 2 {
		return nil, fmt.Errorf("cannot slice a %d-d volume", len(v.shape))
	}
	if i < 0 || i >= v.shape[0] {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", i, v.shape[0])
	}
	sliceSize := len(v.data) / v.shape[0]
	return &Volume{
		dtype: v.dtype,
		shape: append([]int(nil), v.shape[1:]...),
		data:  append([]uint64(nil), v.data[i*sliceSize:(i+1)*sliceSize]...),
	}, nil
}

// Stack concatenates equally shaped volumes along a new first axis.  The result has
// the widest data type of the inputs.
func Stack(vols []*Volume) (*Volume, error) {
	if len(vols) == 0 {
		return nil, fmt.Errorf("no volumes to stack")
	}
	dtype := vols[0].dtype
	for i, vol := range vols[1:] {
		if !vol.SameShape(vols[0]) {
			return nil, fmt.Errorf("volume %d has shape %v, expected %v", i+1, vol.shape, vols[0].shape)
		}
		dtype = dtype.Wider(vol.dtype)
	}
	shape := append([]int{len(vols)}, vols[0].shape...)
	data := make([]uint64, 0, len(vols)*len(vols[0].data))
	for _, vol := range vols {
		data = append(data, vol.data...)
	}
	return &Volume{dtype: dtype, shape: shape, data: data}, nil
}

func (v *Volume) String() string {
	dims := make([]string, len(v.shape))
	for i, dim := range v.shape {
		dims[i] = fmt.Sprintf("%d", dim)
	}
	return fmt.Sprintf("%s volume (%s)", v.dtype, strings.Join(dims, " x "))
}

// MarshalBinary fulfills the encoding.BinaryMarshaler interface.  The encoding is
// the data type byte, the number of dimensions byte, little-endian uint32 dimensions,
// then little-endian elements using the data type's byte width.
func (v *Volume) MarshalBinary() ([]byte, error) {
	if len(v.shape) > 255 {
		return nil, fmt.Errorf("too many dimensions to serialize: %d", len(v.shape))
	}
	width := v.dtype.Bytes()
	buf := make([]byte, 2+4*len(v.shape)+width*len(v.data))
	buf[0] = byte(v.dtype)
	buf[1] = byte(len(v.shape))
	pos := 2
	for _, dim := range v.shape {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(dim))
		pos += 4
	}
	for _, value := range v.data {
		switch v.dtype {
		case T_uint8:
			buf[pos] = uint8(value)
		case T_uint16:
			binary.LittleEndian.PutUint16(buf[pos:], uint16(value))
		case T_uint32:
			binary.LittleEndian.PutUint32(buf[pos:], uint32(value))
		case T_uint64:
			binary.LittleEndian.PutUint64(buf[pos:], value)
		}
		pos += width
	}
	return buf, nil
}

// UnmarshalBinary fulfills the encoding.BinaryUnmarshaler interface.
func (v *Volume) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("volume encoding too short: %d bytes", len(b))
	}
	dtype := DataType(b[0])
	if !dtype.Valid() {
		return fmt.Errorf("bad data type %d in volume encoding", b[0])
	}
	ndims := int(b[1])
	buf := bytes.NewBuffer(b[2:])
	shape := make([]int, ndims)
	for i := range shape {
		var dim uint32
		if err := binary.Read(buf, binary.LittleEndian, &dim); err != nil {
			return fmt.Errorf("unable to read dimension %d: %v", i, err)
		}
		shape[i] = int(dim)
	}
	n, err := numElements(shape)
	if err != nil {
		return err
	}
	width := dtype.Bytes()
	payload := buf.Bytes()
	if len(payload) != n*width {
		return fmt.Errorf("expected %d bytes of %s elements, got %d", n*width, dtype, len(payload))
	}
	data := make([]uint64, n)
	for i := range data {
		p := payload[i*width:]
		switch dtype {
		case T_uint8:
			data[i] = uint64(p[0])
		case T_uint16:
			data[i] = uint64(binary.LittleEndian.Uint16(p))
		case T_uint32:
			data[i] = uint64(binary.LittleEndian.Uint32(p))
		case T_uint64:
			data[i] = binary.LittleEndian.Uint64(p)
		}
	}
	v.dtype = dtype
	v.shape = shape
	v.data = data
	return nil
}
