package labels

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// PointSet is an ordered collection of coordinates in array-axis order, e.g., (z, y, x)
// for a 3-d volume.  Coordinates may be fractional.
type PointSet struct {
	points [][]float64
}

// NewPointSet returns a point set holding copies of the given points.
func NewPointSet(points ...[]float64) *PointSet {
	ps := new(PointSet)
	for _, pt := range points {
		ps.Add(pt...)
	}
	return ps
}

// Add appends a point.
func (ps *PointSet) Add(coords ...float64) {
	ps.points = append(ps.points, append([]float64(nil), coords...))
}

func (ps *PointSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.points)
}

// Points returns a copy of the points in insertion order.
func (ps *PointSet) Points() [][]float64 {
	if ps == nil {
		return nil
	}
	out := make([][]float64, len(ps.points))
	for i, pt := range ps.points {
		out[i] = append([]float64(nil), pt...)
	}
	return out
}

// Clear removes all points.
func (ps *PointSet) Clear() {
	ps.points = nil
}

// voxelIndex truncates each coordinate toward zero and returns the index if it falls
// within shape.
func voxelIndex(pt []float64, shape []int) ([]int, bool) {
	index := make([]int, len(pt))
	for i, c := range pt {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, false
		}
		c = math.Trunc(c)
		if c < 0 || c >= float64(shape[i]) {
			return nil, false
		}
		index[i] = int(c)
	}
	return index, true
}

// ParsePoints reads points from comma separated text, one point per line.  Blank lines
// and lines starting with '#' are ignored.  A leading header line is skipped, and if its
// first column is "index" that column is dropped from every row, which matches the CSV
// layout written by common viewers.
func ParsePoints(r io.Reader) (*PointSet, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	ps := new(PointSet)
	var dims int
	var dropIndex bool
	for lineNum := 0; ; lineNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read points: %w", err)
		}
		if lineNum == 0 && !isNumeric(record[0]) {
			dropIndex = strings.EqualFold(strings.TrimSpace(record[0]), "index")
			continue
		}
		if dropIndex {
			record = record[1:]
		}
		if len(record) == 0 {
			continue
		}
		coords := make([]float64, len(record))
		for i, field := range record {
			coords[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("bad coordinate %q in point %d: %w", field, ps.Len()+1, err)
			}
		}
		if dims == 0 {
			dims = len(coords)
		} else if len(coords) != dims {
			return nil, fmt.Errorf("point %d has %d coordinates, expected %d", ps.Len()+1, len(coords), dims)
		}
		ps.points = append(ps.points, coords)
	}
	return ps, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
