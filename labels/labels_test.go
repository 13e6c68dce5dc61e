package labels

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/janelia-flyem/neuropil/npil"
)

func makeVolume(t *testing.T, dtype npil.DataType, data []uint64, shape ...int) *npil.Volume {
	vol, err := npil.NewVolumeFromData(dtype, data, shape...)
	if err != nil {
		t.Fatalf("unable to create volume: %v\n", err)
	}
	return vol
}

func checkData(t *testing.T, name string, vol *npil.Volume, expected []uint64) {
	got := vol.Data()
	if len(got) != len(expected) {
		t.Fatalf("%s: expected %d elements, got %d\n", name, len(expected), len(got))
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("%s: expected %v, got %v\n", name, expected, got)
			return
		}
	}
}

func TestNormalize(t *testing.T) {
	vol := makeVolume(t, npil.T_uint16, []uint64{0, 5, 5, 3, 3, 0}, 2, 3)
	out, mapping := Normalize(vol)
	checkData(t, "normalized", out, []uint64{0, 2, 2, 1, 1, 0})
	checkData(t, "original", vol, []uint64{0, 5, 5, 3, 3, 0})
	if out.DataType() != npil.T_uint16 || !out.SameShape(vol) {
		t.Errorf("normalized volume changed type or shape: %s\n", out)
	}
	if mapping.Len() != 2 {
		t.Errorf("expected 2 labels, got %d\n", mapping.Len())
	}
	if dense, found := mapping.New(5); !found || dense != 2 {
		t.Errorf("expected 5 -> 2, got %d (%t)\n", dense, found)
	}
	if old, found := mapping.Old(1); !found || old != 3 {
		t.Errorf("expected 1 -> 3, got %d (%t)\n", old, found)
	}
	if _, found := mapping.New(4); found {
		t.Errorf("label 4 should not be in mapping\n")
	}
	if mapping.String() != "2 unique labels (1 to 2)" {
		t.Errorf("bad mapping summary: %q\n", mapping.String())
	}
}

func TestNormalizeDense(t *testing.T) {
	vol := makeVolume(t, npil.T_uint32, []uint64{1000000, 7, 0, 42, 7, 1000000, 42, 0}, 2, 2, 2)
	out, mapping := Normalize(vol)
	checkData(t, "normalized", out, []uint64{3, 1, 0, 2, 1, 3, 2, 0})
	if mapping.Len() != 3 {
		t.Errorf("expected 3 labels, got %d\n", mapping.Len())
	}

	again, m2 := Normalize(out)
	checkData(t, "renormalized", again, out.Data())
	if m2.Len() != 3 {
		t.Errorf("expected 3 labels after renormalizing, got %d\n", m2.Len())
	}
}

func TestNormalizeEmpty(t *testing.T) {
	vol := makeVolume(t, npil.T_uint8, []uint64{0, 0, 0, 0}, 2, 2)
	out, mapping := Normalize(vol)
	checkData(t, "normalized", out, []uint64{0, 0, 0, 0})
	if mapping.Len() != 0 {
		t.Errorf("expected no labels, got %d\n", mapping.Len())
	}
}

func TestCount(t *testing.T) {
	vol := makeVolume(t, npil.T_uint8, []uint64{0, 9, 9, 4, 9, 0}, 6)
	counts := Count(vol)
	if len(counts) != 2 {
		t.Fatalf("expected 2 labels, got %v\n", counts)
	}
	if counts[0] != (LabelCount{4, 1}) || counts[1] != (LabelCount{9, 3}) {
		t.Errorf("bad counts: %v\n", counts)
	}
}

func TestTransfer(t *testing.T) {
	src := makeVolume(t, npil.T_uint16, []uint64{7, 7, 0, 7}, 2, 2)
	dst := makeVolume(t, npil.T_uint16, []uint64{0, 0, 0, 0}, 2, 2)
	pts := NewPointSet([]float64{0, 0})
	delta, err := Transfer(src, dst, pts)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	checkData(t, "source", src, []uint64{0, 0, 0, 0})
	checkData(t, "destination", dst, []uint64{7, 7, 0, 7})
	if pts.Len() != 0 {
		t.Errorf("expected points cleared, got %d\n", pts.Len())
	}
	if len(delta.Moves) != 1 || delta.Moves[0] != (Move{7, 3}) {
		t.Errorf("bad delta: %v\n", delta)
	}
}

func TestTransferWholeVolume(t *testing.T) {
	// Two disconnected regions of label 5 both move.
	src := makeVolume(t, npil.T_uint8, []uint64{
		5, 0, 5,
		0, 3, 0,
		5, 0, 5,
	}, 3, 3)
	dst := makeVolume(t, npil.T_uint8, []uint64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}, 3, 3)
	pts := NewPointSet([]float64{2.9, 2.2})
	if _, err := Transfer(src, dst, pts); err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	checkData(t, "source", src, []uint64{0, 0, 0, 0, 3, 0, 0, 0, 0})
	checkData(t, "destination", dst, []uint64{5, 1, 5, 1, 1, 1, 5, 1, 5})
}

func TestTransferSkips(t *testing.T) {
	src := makeVolume(t, npil.T_uint16, []uint64{7, 0, 0, 0}, 2, 2)
	dst := makeVolume(t, npil.T_uint16, []uint64{0, 2, 0, 0}, 2, 2)

	// out of bounds, background and negative coordinates
	pts := NewPointSet([]float64{99, 99}, []float64{1, 1}, []float64{-1, 0})
	delta, err := Transfer(src, dst, pts)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	checkData(t, "source", src, []uint64{7, 0, 0, 0})
	checkData(t, "destination", dst, []uint64{0, 2, 0, 0})
	if pts.Len() != 0 {
		t.Errorf("expected points cleared after skipped transfer\n")
	}
	if len(delta.Moves) != 0 {
		t.Errorf("expected empty delta, got %v\n", delta)
	}

	// non-finite coordinates are out of bounds
	nan, inf := math.NaN(), math.Inf(1)
	pts = NewPointSet([]float64{nan, 0}, []float64{0, inf}, []float64{math.Inf(-1), 0})
	if delta, err = Transfer(src, dst, pts); err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if len(delta.Moves) != 0 {
		t.Errorf("expected non-finite points skipped, got %v\n", delta)
	}
	checkData(t, "source", src, []uint64{7, 0, 0, 0})

	// -0.5 truncates toward zero and lands on the first voxel
	pts = NewPointSet([]float64{-0.5, -0.5})
	if delta, err = Transfer(src, dst, pts); err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if len(delta.Moves) != 1 || delta.Moves[0] != (Move{7, 1}) {
		t.Errorf("expected label 7 moved from (-0.5, -0.5), got %v\n", delta)
	}
	checkData(t, "destination", dst, []uint64{7, 2, 0, 0})
}

func TestTransferShapeMismatch(t *testing.T) {
	src := makeVolume(t, npil.T_uint16, []uint64{7, 7, 7, 7}, 2, 2)
	dst := makeVolume(t, npil.T_uint16, make([]uint64, 6), 2, 3)
	pts := NewPointSet([]float64{0, 0})
	_, err := Transfer(src, dst, pts)
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected shape error, got %v\n", err)
	}
	checkData(t, "source", src, []uint64{7, 7, 7, 7})
	checkData(t, "destination", dst, make([]uint64, 6))
	if pts.Len() != 1 {
		t.Errorf("points should be untouched on shape mismatch\n")
	}
}

func TestTransferBadPoints(t *testing.T) {
	src := makeVolume(t, npil.T_uint16, []uint64{7, 7, 7, 7}, 2, 2)
	dst := makeVolume(t, npil.T_uint16, make([]uint64, 4), 2, 2)
	pts := NewPointSet([]float64{0, 0}, []float64{0, 0, 0})
	if _, err := Transfer(src, dst, pts); !errors.Is(err, ErrPointDims) {
		t.Fatalf("expected point dimensionality error, got %v\n", err)
	}
	checkData(t, "source", src, []uint64{7, 7, 7, 7})
	if pts.Len() != 2 {
		t.Errorf("points should be untouched on bad point\n")
	}

	wide := makeVolume(t, npil.T_uint16, []uint64{300, 0, 0, 0}, 2, 2)
	narrow := makeVolume(t, npil.T_uint8, make([]uint64, 4), 2, 2)
	_, err := Transfer(wide, narrow, NewPointSet([]float64{0, 0}))
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected range error moving label 300 into uint8 volume, got %v\n", err)
	}
	if rangeErr.Label != 300 || rangeErr.Type != npil.T_uint8 {
		t.Errorf("bad range error: %+v\n", rangeErr)
	}
	checkData(t, "wide source", wide, []uint64{300, 0, 0, 0})
}

func TestTransferIdempotent(t *testing.T) {
	src := makeVolume(t, npil.T_uint16, []uint64{
		4, 4, 6,
		0, 6, 8,
	}, 2, 3)
	dst := makeVolume(t, npil.T_uint16, make([]uint64, 6), 2, 3)
	pts := NewPointSet([]float64{0, 0}, []float64{0, 1}, []float64{1, 1}, []float64{0, 2})
	delta, err := Transfer(src, dst, pts)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	checkData(t, "source", src, []uint64{0, 0, 0, 0, 0, 8})
	checkData(t, "destination", dst, []uint64{4, 4, 6, 0, 6, 0})
	if len(delta.Moves) != 2 || delta.Moves[0] != (Move{4, 2}) || delta.Moves[1] != (Move{6, 2}) {
		t.Errorf("bad delta: %v\n", delta)
	}
	if delta.Voxels() != 4 {
		t.Errorf("expected 4 voxels moved, got %d\n", delta.Voxels())
	}

	// A second transfer with the same point is a no-op since the source is now background.
	pts.Add(0, 0)
	delta, err = Transfer(src, dst, pts)
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if len(delta.Moves) != 0 {
		t.Errorf("expected no moves on repeat transfer, got %v\n", delta)
	}
	checkData(t, "destination after repeat", dst, []uint64{4, 4, 6, 0, 6, 0})
}

func TestParsePoints(t *testing.T) {
	text := `index,axis-0,axis-1,axis-2
# a comment
0,1.5,2,3
1,4,5.9,6
`
	pts, err := ParsePoints(strings.NewReader(text))
	if err != nil {
		t.Fatalf("unable to parse points: %v\n", err)
	}
	if pts.Len() != 2 {
		t.Fatalf("expected 2 points, got %d\n", pts.Len())
	}
	got := pts.Points()
	if got[0][0] != 1.5 || got[1][1] != 5.9 || len(got[1]) != 3 {
		t.Errorf("bad points: %v\n", got)
	}

	pts, err = ParsePoints(strings.NewReader("3,4\n5,6\n"))
	if err != nil {
		t.Fatalf("unable to parse headerless points: %v\n", err)
	}
	if pts.Len() != 2 || pts.Points()[1][0] != 5 {
		t.Errorf("bad headerless points: %v\n", pts.Points())
	}

	if _, err := ParsePoints(strings.NewReader("1,2\n3,x\n")); err == nil {
		t.Errorf("expected error on bad coordinate\n")
	}
	if _, err := ParsePoints(strings.NewReader("1,2\n3,4,5\n")); err == nil {
		t.Errorf("expected error on ragged points\n")
	}
}

func TestEvents(t *testing.T) {
	_, mapping := Normalize(makeVolume(t, npil.T_uint8, []uint64{0, 12, 3}, 3))
	ev := NewRelabelEvent("Labels", mapping)
	if ev.NumLabels != 2 || ev.MaxLabel != 12 {
		t.Errorf("bad relabel event: %v\n", ev)
	}
	ev2 := NewRelabelEvent("Labels", mapping)
	if ev.MutationID() == "" || ev.MutationID() == ev2.MutationID() {
		t.Errorf("mutation ids should be unique and nonempty: %q, %q\n", ev.MutationID(), ev2.MutationID())
	}
	var e Event = NewTransferEvent("a", "b", 1, Delta{Moves: []Move{{7, 3}}})
	if e.EventType() != "transfer" {
		t.Errorf("bad event type: %s\n", e.EventType())
	}
}
