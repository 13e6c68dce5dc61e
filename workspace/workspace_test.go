package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
)

type countingObserver struct {
	n int
}

func (o *countingObserver) OnLayersChanged() { o.n++ }

type memRecorder struct {
	sync.Mutex
	events []labels.Event
}

func (r *memRecorder) RecordMutation(e labels.Event) error {
	r.Lock()
	r.events = append(r.events, e)
	r.Unlock()
	return nil
}

func makeVolume(t *testing.T, data []uint64, shape ...int) *npil.Volume {
	vol, err := npil.NewVolumeFromData(npil.T_uint16, data, shape...)
	if err != nil {
		t.Fatalf("unable to create volume: %v\n", err)
	}
	return vol
}

func makeWorkspace(t *testing.T) *Workspace {
	ws := New()
	layers := []*Layer{
		{Name: "Images", Kind: ImageLayer, Volume: makeVolume(t, make([]uint64, 6), 2, 3)},
		{Name: "Labels", Kind: LabelsLayer, Volume: makeVolume(t, []uint64{7, 7, 0, 0, 0, 7}, 2, 3)},
		{Name: "Curated", Kind: LabelsLayer, Volume: makeVolume(t, make([]uint64, 6), 2, 3)},
		{Name: "Points", Kind: PointsLayer},
	}
	for _, layer := range layers {
		if err := ws.Add(layer); err != nil {
			t.Fatalf("unable to add layer %q: %v\n", layer.Name, err)
		}
	}
	return ws
}

func TestWorkspaceLayers(t *testing.T) {
	ws := New()
	obs := new(countingObserver)
	ws.Subscribe(obs)

	vol := makeVolume(t, make([]uint64, 4), 2, 2)
	if err := ws.Add(&Layer{Name: "a", Kind: LabelsLayer, Volume: vol}); err != nil {
		t.Fatalf("unable to add layer: %v\n", err)
	}
	if err := ws.Add(&Layer{Name: "a", Kind: LabelsLayer, Volume: vol}); !errors.Is(err, ErrLayerExists) {
		t.Errorf("expected ErrLayerExists, got %v\n", err)
	}
	if err := ws.Add(&Layer{Name: "b", Kind: LabelsLayer}); err == nil {
		t.Errorf("expected error adding label layer without volume\n")
	}
	if err := ws.Add(&Layer{Name: "p", Kind: PointsLayer}); err != nil {
		t.Fatalf("unable to add points layer: %v\n", err)
	}
	if obs.n != 2 {
		t.Errorf("expected 2 notifications, got %d\n", obs.n)
	}
	if names := ws.Names(LabelsLayer); len(names) != 1 || names[0] != "a" {
		t.Errorf("bad label layer names: %v\n", names)
	}
	layer, err := ws.Get("p")
	if err != nil || layer.Points == nil {
		t.Fatalf("points layer should have empty point set: %v\n", err)
	}
	if err := ws.Remove("a"); err != nil {
		t.Fatalf("unable to remove layer: %v\n", err)
	}
	if _, err := ws.Get("a"); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v\n", err)
	}
	if err := ws.Remove("a"); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound on second removal, got %v\n", err)
	}
	if obs.n != 3 {
		t.Errorf("expected 3 notifications, got %d\n", obs.n)
	}
}

func TestTransferPanel(t *testing.T) {
	ws := makeWorkspace(t)
	rec := new(memRecorder)
	c := NewCurator(ws, rec)

	if choices := c.Transfer.LabelChoices(); len(choices) != 2 {
		t.Errorf("expected 2 label choices, got %v\n", choices)
	}
	if sel := c.Transfer.Selection(); sel.From != "Labels" || sel.Points != "Points" {
		t.Errorf("expected default selection of first layers, got %v\n", sel)
	}

	req := TransferRequest{From: "Labels", To: "Curated", Points: "Points"}
	if err := c.OnTransferRequested(req); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v\n", err)
	}
	if c.Transfer.Message() != "No points found in point layer" {
		t.Errorf("bad message: %q\n", c.Transfer.Message())
	}

	ws.Update([]string{"Points"}, func(layers []*Layer) error {
		layers[0].Points.Add(0, 1)
		layers[0].Points.Add(9, 9)
		return nil
	})
	if err := c.OnTransferRequested(req); err != nil {
		t.Fatalf("unexpected transfer error: %v\n", err)
	}
	if c.Transfer.Message() != "Labels transferred from 'Labels' to 'Curated' and points cleared" {
		t.Errorf("bad message: %q\n", c.Transfer.Message())
	}
	src, _ := ws.Get("Labels")
	dst, _ := ws.Get("Curated")
	pts, _ := ws.Get("Points")
	for i, v := range src.Volume.Data() {
		if v != 0 {
			t.Errorf("source voxel %d not cleared: %d\n", i, v)
		}
	}
	expected := []uint64{7, 7, 0, 0, 0, 7}
	for i, v := range dst.Volume.Data() {
		if v != expected[i] {
			t.Errorf("destination voxel %d: expected %d, got %d\n", i, expected[i], v)
		}
	}
	if pts.Points.Len() != 0 {
		t.Errorf("expected points cleared\n")
	}
	if src.Version != 1 || dst.Version != 1 || pts.Version != 2 {
		t.Errorf("bad versions: %d %d %d\n", src.Version, dst.Version, pts.Version)
	}
	if len(rec.events) != 1 || rec.events[0].EventType() != "transfer" {
		t.Errorf("expected one transfer event, got %v\n", rec.events)
	}
}

func TestTransferPanelErrors(t *testing.T) {
	ws := makeWorkspace(t)
	c := NewCurator(ws, nil)

	tests := []struct {
		req TransferRequest
		err error
	}{
		{TransferRequest{From: "Labels", To: "", Points: "Points"}, ErrMissingSelection},
		{TransferRequest{From: "Labels", To: "Labels", Points: "Points"}, ErrSameLayer},
		{TransferRequest{From: "Labels", To: "Missing", Points: "Points"}, ErrLayerNotFound},
		{TransferRequest{From: "Images", To: "Curated", Points: "Points"}, ErrWrongKind},
	}
	for _, tc := range tests {
		if err := c.OnTransferRequested(tc.req); !errors.Is(err, tc.err) {
			t.Errorf("request %v: expected %v, got %v\n", tc.req, tc.err, err)
		}
	}

	// A shape mismatch fails without touching the point layer.
	ws.Add(&Layer{Name: "Small", Kind: LabelsLayer, Volume: makeVolume(t, make([]uint64, 4), 2, 2)})
	ws.Update([]string{"Points"}, func(layers []*Layer) error {
		layers[0].Points.Add(0, 0)
		return nil
	})
	err := c.OnTransferRequested(TransferRequest{From: "Labels", To: "Small", Points: "Points"})
	var shapeErr *labels.ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected shape error, got %v\n", err)
	}
	pts, _ := ws.Get("Points")
	if pts.Points.Len() != 1 {
		t.Errorf("points should be kept after shape error\n")
	}
}

func TestSavePanel(t *testing.T) {
	ws := makeWorkspace(t)
	rec := new(memRecorder)
	c := NewCurator(ws, rec)

	if c.Save.Directory() != imageio.DefaultExportDir {
		t.Errorf("bad default directory: %q\n", c.Save.Directory())
	}
	if c.Save.Layer() != "Labels" {
		t.Errorf("expected first label layer selected, got %q\n", c.Save.Layer())
	}

	dir := filepath.Join(t.TempDir(), "out")
	n, err := c.OnSaveRequested(SaveRequest{Layer: "Labels", Directory: dir})
	if err != nil {
		t.Fatalf("unable to save: %v\n", err)
	}
	if n != 2 {
		t.Errorf("expected 2 files, got %d\n", n)
	}
	for _, name := range []string{"0000.png", "0001.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v\n", name, err)
		}
	}
	if msg := c.Save.Message(); msg != "Saved 2 PNG files to "+dir {
		t.Errorf("bad message: %q\n", msg)
	}
	if len(rec.events) != 1 || rec.events[0].EventType() != "export" {
		t.Errorf("expected one export event, got %v\n", rec.events)
	}

	if _, err := c.OnSaveRequested(SaveRequest{Layer: "Images"}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("expected ErrWrongKind saving image layer, got %v\n", err)
	}
	ws.Remove("Labels")
	ws.Remove("Curated")
	if c.Save.Layer() != "" {
		t.Errorf("expected no selection without label layers, got %q\n", c.Save.Layer())
	}
	if _, err := c.OnSaveRequested(SaveRequest{}); !errors.Is(err, ErrMissingSelection) {
		t.Errorf("expected ErrMissingSelection, got %v\n", err)
	}
}

func TestShortenPath(t *testing.T) {
	if s := shortenPath("saved_labels_png", 30); s != "saved_labels_png" {
		t.Errorf("short path changed: %q\n", s)
	}
	long := "/very/long/path/to/some/experiment/labels"
	s := shortenPath(long, 30)
	if len(s) != 30 || s[:3] != "..." || s[3:] != long[len(long)-27:] {
		t.Errorf("bad shortened path: %q\n", s)
	}
}

func TestRelabel(t *testing.T) {
	ws := makeWorkspace(t)
	rec := new(memRecorder)
	c := NewCurator(ws, rec)
	mapping, err := c.Relabel("Labels")
	if err != nil {
		t.Fatalf("unable to relabel: %v\n", err)
	}
	if mapping.Len() != 1 {
		t.Errorf("expected 1 label, got %d\n", mapping.Len())
	}
	layer, _ := ws.Get("Labels")
	if v, _ := layer.Volume.Value(0, 0); v != 1 {
		t.Errorf("expected relabeled value 1, got %d\n", v)
	}
	if _, err := c.Relabel("Points"); !errors.Is(err, ErrWrongKind) {
		t.Errorf("expected ErrWrongKind relabeling points, got %v\n", err)
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	vol := makeVolume(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	imagesDir := filepath.Join(dir, "images")
	if _, err := imageio.ExportSlices(vol, imagesDir); err != nil {
		t.Fatalf("unable to write images: %v\n", err)
	}
	ws, err := Setup(imagesDir, imagesDir)
	if err != nil {
		t.Fatalf("unable to set up workspace: %v\n", err)
	}
	layers := ws.Layers()
	if len(layers) != 3 || layers[0].Name != ImagesName || layers[1].Kind != LabelsLayer || layers[2].Kind != PointsLayer {
		t.Errorf("bad setup layers: %v\n", layers)
	}
	if _, err := Setup(filepath.Join(dir, "missing"), imagesDir); err == nil {
		t.Errorf("expected error with missing images\n")
	}
}
