package labels

import (
	"errors"
	"fmt"

	"github.com/janelia-flyem/neuropil/npil"
)

// ShapeError is returned when two volumes that must be congruent have different shapes.
type ShapeError struct {
	Src, Dst []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("source shape %v does not match destination shape %v", e.Src, e.Dst)
}

// ErrPointDims is returned when a point's coordinate count differs from the volume's
// dimensionality.
var ErrPointDims = errors.New("point dimensionality does not match volumes")

// RangeError is returned when a moved label exceeds the maximum of the destination's
// data type.
type RangeError struct {
	Label uint64
	Type  npil.DataType
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("label %d does not fit destination type %s", e.Label, e.Type)
}

// Move records one label moved by a transfer.
type Move struct {
	Label  uint64
	Voxels uint64
}

// Delta describes the labels moved by a transfer in the order their points were given.
type Delta struct {
	Moves []Move
}

// Labels returns the moved labels.
func (d Delta) Labels() []uint64 {
	out := make([]uint64, len(d.Moves))
	for i, mv := range d.Moves {
		out[i] = mv.Label
	}
	return out
}

// Voxels returns the total number of voxels moved.
func (d Delta) Voxels() uint64 {
	var n uint64
	for _, mv := range d.Moves {
		n += mv.Voxels
	}
	return n
}

// Transfer moves, for each point, the label found in src at that point to dst.  Every
// voxel of src carrying that label anywhere in the volume is written into dst and zeroed
// in src; spatial connectivity is not considered.  Points are truncated toward zero and
// skipped when out of bounds or when they land on background.  The point set is cleared
// afterwards.
//
// Preconditions are checked before anything is modified: src and dst must have the same
// shape, every point must have one coordinate per dimension, and every moved label must
// fit the data type of dst.  If a precondition fails, the volumes and points are left
// untouched.
func Transfer(src, dst *npil.Volume, pts *PointSet) (Delta, error) {
	if src == nil || dst == nil {
		return Delta{}, fmt.Errorf("transfer requires both source and destination volumes")
	}
	if src == dst {
		return Delta{}, fmt.Errorf("transfer source and destination must be different volumes")
	}
	if !src.SameShape(dst) {
		return Delta{}, &ShapeError{Src: src.Shape(), Dst: dst.Shape()}
	}
	if pts.Len() == 0 {
		return Delta{}, nil
	}
	shape := src.Shape()
	for i, pt := range pts.points {
		if len(pt) != len(shape) {
			return Delta{}, fmt.Errorf("%w: point %d has %d coordinates but volumes are %d-d", ErrPointDims, i, len(pt), len(shape))
		}
	}

	// Moving a label only zeroes voxels of that label, so a later point either sees an
	// already moved label or one untouched by earlier moves.  Resolving all labels
	// against the original source therefore matches point-by-point processing.
	srcData := src.Data()
	var order []uint64
	moving := make(map[uint64]int)
	for _, pt := range pts.points {
		index, inBounds := voxelIndex(pt, shape)
		if !inBounds {
			npil.Debugf("skipping out of bounds point %v for volume shape %v\n", pt, shape)
			continue
		}
		offset, _ := src.Offset(index)
		label := srcData[offset]
		if label == 0 {
			continue
		}
		if _, found := moving[label]; found {
			continue
		}
		if label > dst.DataType().Max() {
			return Delta{}, &RangeError{Label: label, Type: dst.DataType()}
		}
		moving[label] = len(order)
		order = append(order, label)
	}

	delta := Delta{Moves: make([]Move, len(order))}
	for i, label := range order {
		delta.Moves[i].Label = label
	}
	dstData := dst.Data()
	for i, value := range srcData {
		if value == 0 {
			continue
		}
		if pos, found := moving[value]; found {
			dstData[i] = value
			srcData[i] = 0
			delta.Moves[pos].Voxels++
		}
	}
	pts.Clear()
	return delta, nil
}
