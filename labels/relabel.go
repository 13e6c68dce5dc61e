package labels

import (
	"sort"

	"github.com/janelia-flyem/neuropil/npil"
)

// Normalize returns a new volume of the same shape and data type in which the distinct
// nonzero labels of vol are replaced by 1..K in ascending order of the original label.
// Background stays 0 and vol is not modified.
func Normalize(vol *npil.Volume) (*npil.Volume, Mapping) {
	seen := make(map[uint64]struct{})
	for _, value := range vol.Data() {
		if value != 0 {
			seen[value] = struct{}{}
		}
	}
	sorted := make([]uint64, 0, len(seen))
	for label := range seen {
		sorted = append(sorted, label)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	dense := make(map[uint64]uint64, len(sorted))
	for i, label := range sorted {
		dense[label] = uint64(i + 1)
	}

	// K never exceeds the largest original label, so the original type always holds 1..K.
	out := vol.Clone()
	data := out.Data()
	for i, value := range data {
		if value != 0 {
			data[i] = dense[value]
		}
	}
	return out, Mapping{labels: sorted}
}
