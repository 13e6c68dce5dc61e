/*
	Package labels implements curation operations on label volumes: dense relabeling,
	point-driven transfer of labels between volumes, and the mutation events those
	operations produce.

	A label volume assigns a non-negative integer to every voxel.  Label 0 is background
	and is never reassigned or transferred.
*/
package labels

import (
	"fmt"
	"sort"

	"github.com/janelia-flyem/neuropil/npil"
)

// Mapping holds the sorted distinct nonzero labels of a volume.  The i-th smallest
// original label (0-indexed) maps to dense label i+1.
type Mapping struct {
	labels []uint64
}

// Len returns the number of distinct nonzero labels.
func (m Mapping) Len() int {
	return len(m.labels)
}

// Labels returns a copy of the sorted original labels.
func (m Mapping) Labels() []uint64 {
	return append([]uint64(nil), m.labels...)
}

// New returns the dense label for an original label.  Background maps to itself.
func (m Mapping) New(old uint64) (uint64, bool) {
	if old == 0 {
		return 0, true
	}
	i := sort.Search(len(m.labels), func(i int) bool { return m.labels[i] >= old })
	if i == len(m.labels) || m.labels[i] != old {
		return 0, false
	}
	return uint64(i + 1), true
}

// Old returns the original label for a dense label.
func (m Mapping) Old(dense uint64) (uint64, bool) {
	if dense == 0 {
		return 0, true
	}
	if dense > uint64(len(m.labels)) {
		return 0, false
	}
	return m.labels[dense-1], true
}

func (m Mapping) String() string {
	if len(m.labels) == 0 {
		return "0 unique labels"
	}
	return fmt.Sprintf("%d unique labels (1 to %d)", len(m.labels), len(m.labels))
}

// LabelCount is the number of voxels carrying a label.
type LabelCount struct {
	Label  uint64
	Voxels uint64
}

// Count returns the distinct nonzero labels of a volume and their voxel counts, sorted
// by label.
func Count(vol *npil.Volume) []LabelCount {
	counts := make(map[uint64]uint64)
	for _, value := range vol.Data() {
		if value != 0 {
			counts[value]++
		}
	}
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Voxels: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
