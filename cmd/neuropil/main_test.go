package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/npil"
)

// writeStack writes a 2 x 2 x 3 label volume as a directory of PNG slices.
func writeStack(t *testing.T, dir string, data []uint64) {
	vol, err := npil.NewVolumeFromData(npil.T_uint16, data, 2, 2, 3)
	if err != nil {
		t.Fatalf("bad volume: %v\n", err)
	}
	if _, err := imageio.ExportSlices(vol, dir); err != nil {
		t.Fatalf("unable to write stack: %v\n", err)
	}
}

func loadStack(t *testing.T, dir string) []uint64 {
	vol, err := imageio.Load(dir)
	if err != nil {
		t.Fatalf("unable to load %s: %v\n", dir, err)
	}
	return vol.Data()
}

func equalData(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRelabelCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	writeStack(t, input, []uint64{0, 40, 40, 7, 7, 0, 0, 0, 900, 900, 40, 0})

	outdir := filepath.Join(dir, "out")
	if err := DoCommand(npil.Command{"relabel", input, outdir}); err != nil {
		t.Fatalf("relabel failed: %v\n", err)
	}
	expected := []uint64{0, 2, 2, 1, 1, 0, 0, 0, 3, 3, 2, 0}
	if got := loadStack(t, outdir); !equalData(got, expected) {
		t.Errorf("expected relabeled %v, got %v\n", expected, got)
	}

	if err := DoCommand(npil.Command{"relabel", input}); err == nil {
		t.Errorf("expected error for relabel without output directory\n")
	}
}

func TestRelabelPairCommand(t *testing.T) {
	dir := t.TempDir()
	writeStack(t, filepath.Join(dir, "dendrite"), []uint64{5, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5})
	writeStack(t, filepath.Join(dir, "axon"), []uint64{0, 0, 3, 3, 0, 0, 0, 8, 0, 0, 0, 0})

	outdir := filepath.Join(dir, "out")
	cmd := npil.Command{"relabel-pair", filepath.Join(dir, "dendrite"), filepath.Join(dir, "axon"), outdir}
	if err := DoCommand(cmd); err != nil {
		t.Fatalf("relabel-pair failed: %v\n", err)
	}
	for _, sub := range []string{"dendrite", "axon"} {
		for _, name := range []string{"0000.png", "0001.png"} {
			if _, err := os.Stat(filepath.Join(outdir, sub, name)); err != nil {
				t.Errorf("missing %s/%s: %v\n", sub, name, err)
			}
		}
	}
	if got := loadStack(t, filepath.Join(outdir, "axon")); got[7] != 2 || got[2] != 1 {
		t.Errorf("unexpected relabeled axon: %v\n", got)
	}
}

func TestTransferCommand(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from")
	to := filepath.Join(dir, "to")
	writeStack(t, from, []uint64{0, 4, 4, 0, 6, 0, 0, 4, 0, 6, 6, 0})
	writeStack(t, to, make([]uint64, 12))

	pointsFile := filepath.Join(dir, "points.csv")
	if err := os.WriteFile(pointsFile, []byte("index,axis-0,axis-1,axis-2\n0,0,0,1\n"), 0644); err != nil {
		t.Fatalf("unable to write points: %v\n", err)
	}
	fromOut := filepath.Join(dir, "from-out")
	toOut := filepath.Join(dir, "to-out")
	cmd := npil.Command{"transfer", from, to, pointsFile, "from-out=" + fromOut, "to-out=" + toOut}
	if err := DoCommand(cmd); err != nil {
		t.Fatalf("transfer failed: %v\n", err)
	}
	expectedFrom := []uint64{0, 0, 0, 0, 6, 0, 0, 0, 0, 6, 6, 0}
	expectedTo := []uint64{0, 4, 4, 0, 0, 0, 0, 4, 0, 0, 0, 0}
	if got := loadStack(t, fromOut); !equalData(got, expectedFrom) {
		t.Errorf("expected source %v, got %v\n", expectedFrom, got)
	}
	if got := loadStack(t, toOut); !equalData(got, expectedTo) {
		t.Errorf("expected destination %v, got %v\n", expectedTo, got)
	}
}

func TestExportAndUnknownCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	writeStack(t, input, make([]uint64, 12))
	outdir := filepath.Join(dir, "exported")
	if err := DoCommand(npil.Command{"export", input, "dir=" + outdir}); err != nil {
		t.Fatalf("export failed: %v\n", err)
	}
	if _, err := os.Stat(filepath.Join(outdir, "0001.png")); err != nil {
		t.Errorf("expected exported slice: %v\n", err)
	}
	if err := DoCommand(npil.Command{"info", input}); err != nil {
		t.Errorf("info failed: %v\n", err)
	}
	if err := DoCommand(npil.Command{"frobnicate"}); err == nil {
		t.Errorf("expected error for unknown command\n")
	}
	if err := DoCommand(nil); err == nil {
		t.Errorf("expected error for blank command\n")
	}
}
